package middleware

import (
	"net/http"

	"github.com/rpattn/changereport/internal/entityloader"
	"github.com/rpattn/changereport/internal/repository"
)

// DataLoaderMiddleware attaches a request-scoped live-table loader, so every
// fallback lookup made while serving the request is batched and cached once.
func DataLoaderMiddleware(repo repository.LiveStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if repo == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := entityloader.NewLiveLoader(repo)
			ctx := entityloader.WithLoader(r.Context(), loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
