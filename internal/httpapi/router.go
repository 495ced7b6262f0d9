package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	reportgraphql "github.com/rpattn/changereport/internal/graphql"
	"github.com/rpattn/changereport/internal/middleware"
	"github.com/rpattn/changereport/internal/repository"
)

// RouterOptions carries the optional collaborators of the router.
type RouterOptions struct {
	AllowedOrigins []string
	MaxWindowSpan  time.Duration
	// Live enables the per-request batched live-table loader.
	Live repository.LiveStore
	// Health is probed by /healthz; nil always reports healthy.
	Health func(ctx context.Context) error
	// Gatherer backs /metrics; nil uses the default gatherer.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the HTTP surface of the service.
func NewRouter(service ReportService, logger *logrus.Logger, opts RouterOptions) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Health(ctx); err != nil {
				logger.WithError(err).Warn("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	handler := NewHandler(service, logger, opts.MaxWindowSpan)
	graphqlServer := reportgraphql.NewServer(reportgraphql.NewResolver(service, logger, opts.MaxWindowSpan), logger)
	r.Group(func(r chi.Router) {
		r.Use(middleware.LoggingMiddleware(logger))
		r.Use(middleware.DataLoaderMiddleware(opts.Live))
		handler.Register(r)
		r.Handle("/query", graphqlServer)
	})
	return r
}
