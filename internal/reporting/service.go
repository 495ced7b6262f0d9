package reporting

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/entityloader"
	"github.com/rpattn/changereport/internal/reporting/metrics"
	"github.com/rpattn/changereport/internal/repository"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultPageSize    = 100
	maxPageSize        = 1000
	defaultConcurrency = 4
	defaultCacheSettle = 5 * time.Minute
)

// Service is the entry point of the change-reporting engine.
type Service struct {
	registry   *Registry
	index      repository.RelatedChangeIndex
	live       repository.LiveStore
	resolver   *SnapshotResolver
	classifier *Classifier
	assembler  *Assembler

	logger  *logrus.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	cache   Cache
	// cacheSettle is how long after until a window must have ended before it is
	// cached, so transactions stamped inside the window have committed.
	cacheSettle time.Duration

	timeout       time.Duration
	pageSize      int
	concurrency   int
	maxWindowSpan time.Duration
	now           func() time.Time
}

type Option func(*Service)

func WithLogger(logger *logrus.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTimeout sets the deadline applied when the caller supplies none.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithConcurrency bounds how many roots are assembled at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithMaxWindowSpan(span time.Duration) Option {
	return func(s *Service) {
		if span > 0 {
			s.maxWindowSpan = span
		}
	}
}

// WithCache enables closed-window caching.
func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithCacheSettle sets how far in the past until must lie before a report is cached.
func WithCacheSettle(settle time.Duration) Option {
	return func(s *Service) {
		if settle >= 0 {
			s.cacheSettle = settle
		}
	}
}

// WithClock sets the clock used only to decide whether a window is closed.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the engine. live may be nil when every kind has complete history.
func NewService(registry *Registry, index repository.RelatedChangeIndex, live repository.LiveStore, opts ...Option) *Service {
	service := &Service{
		registry:      registry,
		index:         index,
		live:          live,
		logger:        logrus.StandardLogger(),
		tracer:        otel.Tracer("github.com/rpattn/changereport/internal/reporting"),
		timeout:       defaultTimeout,
		pageSize:      defaultPageSize,
		concurrency:   defaultConcurrency,
		maxWindowSpan: domain.DefaultMaxWindowSpan,
		cacheSettle:   defaultCacheSettle,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	service.resolver = NewSnapshotResolver(registry, live, service.logger, service.metrics)
	service.classifier = NewClassifier(registry, service.resolver, service.logger)
	service.assembler = NewAssembler(registry, service.classifier, index, service.logger, service.metrics)
	return service
}

// ReportRequest selects a root kind, window and optional root scope.
type ReportRequest struct {
	Kind   domain.EntityKind
	Window domain.ChangeWindow
	RootID *uuid.UUID
	// Cursor is the id of the last root of the previous page.
	Cursor   string
	PageSize int
}

// Report assembles one page of root report trees.
func (s *Service) Report(ctx context.Context, req ReportRequest) (report domain.Report, err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		switch {
		case errors.Is(err, domain.ErrPartialResult):
			outcome = "partial"
		case err != nil:
			outcome = "error"
		}
		s.metrics.ObserveReport(string(req.Kind), outcome, time.Since(start))
	}()

	spec, err := s.registry.Lookup(req.Kind)
	if err != nil {
		return domain.Report{}, err
	}
	if !spec.Root {
		return domain.Report{}, fmt.Errorf("%w: %s is not a root kind", domain.ErrUnknownKind, req.Kind)
	}
	window, err := domain.NewChangeWindow(req.Window.Since, req.Window.Until, s.maxWindowSpan)
	if err != nil {
		return domain.Report{}, err
	}
	req.Window = window
	req.PageSize = s.normalisePageSize(req.PageSize)

	var cursor *uuid.UUID
	if req.Cursor != "" {
		parsed, parseErr := uuid.Parse(req.Cursor)
		if parseErr != nil {
			return domain.Report{}, fmt.Errorf("%w: %v", domain.ErrInvalidCursor, parseErr)
		}
		cursor = &parsed
	}

	cacheable := s.cache != nil && window.ClosedBefore(s.now().Add(-s.cacheSettle))
	key := CacheKey(req)
	if cacheable {
		cached, hit, cacheErr := s.cache.Get(ctx, key)
		switch {
		case cacheErr != nil:
			s.metrics.IncCacheLookup("error")
			s.logger.WithError(cacheErr).Warn("report cache lookup failed")
		case hit:
			s.metrics.IncCacheLookup("hit")
			outcome = "cached"
			return cached, nil
		default:
			s.metrics.IncCacheLookup("miss")
		}
	}

	if _, ok := ctx.Deadline(); !ok && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if s.live != nil && entityloader.FromContext(ctx) == nil {
		ctx = entityloader.WithLoader(ctx, entityloader.NewLiveLoader(s.live))
	}

	ctx, span := s.tracer.Start(ctx, "reporting.Report", trace.WithAttributes(
		attribute.String("report.kind", string(req.Kind)),
		attribute.String("report.since", window.Since.Format(time.RFC3339)),
		attribute.String("report.until", window.Until.Format(time.RFC3339)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	candidates, err := s.rootCandidates(ctx, spec, req, window)
	if err != nil {
		return domain.Report{}, s.deadlineError(ctx, err, 0, 0)
	}
	page, next := paginate(candidates, cursor, req.PageSize)
	span.SetAttributes(attribute.Int("report.roots", len(page)))

	results := make([]RootResult, len(page))
	var completed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, rootID := range page {
		g.Go(func() error {
			result, assembleErr := s.assembler.AssembleRoot(gctx, req.Kind, rootID, window)
			if assembleErr != nil {
				return fmt.Errorf("assemble %s %s: %w", req.Kind, rootID, assembleErr)
			}
			results[i] = result
			completed.Add(1)
			return nil
		})
	}
	if waitErr := g.Wait(); waitErr != nil {
		return domain.Report{}, s.deadlineError(ctx, waitErr, int(completed.Load()), len(page))
	}

	report = domain.Report{
		Kind:   req.Kind,
		Window: window,
		Roots:  []domain.ReportNode{},
	}
	for _, result := range results {
		if result.Included {
			report.Roots = append(report.Roots, result.Node)
		}
		report.Unresolved = append(report.Unresolved, result.Unresolved...)
	}
	if next != nil {
		report.NextCursor = next.String()
	}

	s.logger.WithFields(logrus.Fields{
		"kind":       req.Kind,
		"since":      window.Since.Format(time.RFC3339),
		"until":      window.Until.Format(time.RFC3339),
		"roots":      len(report.Roots),
		"unresolved": len(report.Unresolved),
		"duration":   time.Since(start).String(),
	}).Info("change report assembled")

	if cacheable {
		if cacheErr := s.cache.Set(ctx, key, report); cacheErr != nil {
			s.logger.WithError(cacheErr).Warn("report cache store failed")
		}
	}
	return report, nil
}

func (s *Service) rootCandidates(ctx context.Context, spec KindSpec, req ReportRequest, window domain.ChangeWindow) ([]uuid.UUID, error) {
	if req.RootID != nil {
		return []uuid.UUID{*req.RootID}, nil
	}
	own, err := spec.History.ChangedEntityIDs(ctx, spec.Kind, window)
	if err != nil {
		return nil, fmt.Errorf("changed %s roots: %w", spec.Kind, err)
	}
	viaChildren, err := s.index.FindChangedParents(ctx, spec.Kind, window)
	if err != nil {
		return nil, fmt.Errorf("%s roots with changed descendants: %w", spec.Kind, err)
	}
	return MergeIDs(own, viaChildren), nil
}

// deadlineError converts an expired deadline into a typed partial-result error.
func (s *Service) deadlineError(ctx context.Context, err error, completed, total int) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.WithFields(logrus.Fields{
			"completed_roots": completed,
			"total_roots":     total,
		}).Warn("report deadline exceeded")
		return &domain.PartialResultError{CompletedRoots: completed, TotalRoots: total, Err: context.DeadlineExceeded}
	}
	return err
}

func (s *Service) normalisePageSize(size int) int {
	if size <= 0 {
		size = s.pageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return size
}

// paginate returns the ids after cursor, at most size of them, and the cursor
// for the next page when more remain.
func paginate(ids []uuid.UUID, cursor *uuid.UUID, size int) ([]uuid.UUID, *uuid.UUID) {
	startIdx := 0
	if cursor != nil {
		for startIdx < len(ids) && domain.CompareIDs(ids[startIdx], *cursor) <= 0 {
			startIdx++
		}
	}
	remaining := ids[startIdx:]
	if len(remaining) <= size {
		return remaining, nil
	}
	page := remaining[:size]
	next := page[len(page)-1]
	return page, &next
}
