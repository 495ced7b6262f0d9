package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/changereport/internal/domain"
)

// Cache stores assembled reports for closed windows. History is append-only, so
// a window that ended in the past always yields the same report.
type Cache interface {
	Get(ctx context.Context, key string) (domain.Report, bool, error)
	Set(ctx context.Context, key string, report domain.Report) error
}

// CacheKey derives a stable key from the request.
func CacheKey(req ReportRequest) string {
	root := "*"
	if req.RootID != nil {
		root = req.RootID.String()
	}
	return fmt.Sprintf("report:%s:%s:%s:%s:%s:%d",
		req.Kind,
		req.Window.Since.UTC().Format(time.RFC3339Nano),
		req.Window.Until.UTC().Format(time.RFC3339Nano),
		root,
		req.Cursor,
		req.PageSize,
	)
}
