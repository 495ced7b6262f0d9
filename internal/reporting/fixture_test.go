package reporting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/reporting/metrics"
	"github.com/rpattn/changereport/internal/repository"
	"github.com/rpattn/changereport/internal/repository/memory"
)

var (
	since  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until  = since.Add(24 * time.Hour)
	before = time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
)

// hour returns an instant n hours after since.
func hour(n int) time.Time {
	return since.Add(time.Duration(n) * time.Hour)
}

func testWindow(t *testing.T) domain.ChangeWindow {
	t.Helper()
	w, err := domain.NewChangeWindow(since, until, 0)
	require.NoError(t, err)
	return w
}

func ref(kind domain.EntityKind, id uuid.UUID) domain.ParentRef {
	return domain.ParentRef{Kind: kind, ID: id}
}

type fixture struct {
	t        *testing.T
	history  *memory.HistoryLog
	index    *memory.ChangeIndex
	live     *memory.LiveTable
	registry *Registry
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	hook     *logtest.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	history := memory.NewHistoryLog()
	return newFixtureWithHistory(t, history, history)
}

// newFixtureWithHistory registers the default kinds over store while fixtures
// are written to log.
func newFixtureWithHistory(t *testing.T, log *memory.HistoryLog, store repository.HistoryStore) *fixture {
	t.Helper()
	registry, err := NewDefaultRegistry(store)
	require.NoError(t, err)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return &fixture{
		t:        t,
		history:  log,
		index:    memory.NewChangeIndex(),
		live:     memory.NewLiveTable(),
		registry: registry,
		metrics:  metrics.New(prometheus.NewRegistry()),
		logger:   logger,
		hook:     hook,
	}
}

func (f *fixture) service(opts ...Option) *Service {
	base := []Option{WithLogger(f.logger), WithMetrics(f.metrics)}
	return NewService(f.registry, f.index, f.live, append(base, opts...)...)
}

func (f *fixture) classifier() *Classifier {
	resolver := NewSnapshotResolver(f.registry, f.live, f.logger, f.metrics)
	return NewClassifier(f.registry, resolver, f.logger)
}

// write appends a record stamped with modified_at and rolls the change up the
// given ancestor path (nearest parent first) in the related-change index.
func (f *fixture) write(typ domain.HistoryType, kind domain.EntityKind, id uuid.UUID, at time.Time, fields map[string]any, path ...domain.ParentRef) {
	f.t.Helper()
	stamped := map[string]any{"modified_at": at.Format(time.RFC3339Nano)}
	for k, v := range fields {
		stamped[k] = v
	}

	var record domain.HistoryRecord
	switch typ {
	case domain.HistoryCreate:
		record = domain.Created(kind, id, at, stamped)
	case domain.HistoryUpdate:
		record = domain.Updated(kind, id, at, stamped)
	case domain.HistoryDelete:
		record = domain.Deleted(kind, id, at, stamped)
	}
	require.NoError(f.t, f.history.Append(record))
	f.rollup(typ, kind, id, at, path...)
}

// rollup adds index entries for each step of the path from the entity upwards.
func (f *fixture) rollup(typ domain.HistoryType, kind domain.EntityKind, id uuid.UUID, at time.Time, path ...domain.ParentRef) {
	chain := append([]domain.ParentRef{ref(kind, id)}, path...)
	for i := 0; i < len(chain)-1; i++ {
		f.index.Add(domain.RelatedChangeIndexEntry{
			TriggerInstanceID: chain[i].ID,
			TriggerModel:      chain[i].Kind,
			ParentInstanceID:  chain[i+1].ID,
			ParentModel:       chain[i+1].Kind,
			ChangedTimestamp:  at,
			HistoryType:       typ,
		})
	}
}

func (f *fixture) create(kind domain.EntityKind, id uuid.UUID, at time.Time, fields map[string]any, path ...domain.ParentRef) {
	f.t.Helper()
	f.write(domain.HistoryCreate, kind, id, at, fields, path...)
}

func (f *fixture) update(kind domain.EntityKind, id uuid.UUID, at time.Time, fields map[string]any, path ...domain.ParentRef) {
	f.t.Helper()
	f.write(domain.HistoryUpdate, kind, id, at, fields, path...)
}

func (f *fixture) delete(kind domain.EntityKind, id uuid.UUID, at time.Time, fields map[string]any, path ...domain.ParentRef) {
	f.t.Helper()
	f.write(domain.HistoryDelete, kind, id, at, fields, path...)
}

func (f *fixture) warnings() []*logrus.Entry {
	var out []*logrus.Entry
	for _, entry := range f.hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			out = append(out, entry)
		}
	}
	return out
}

// sortedIDs returns n fresh ids in ascending order.
func sortedIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	domain.SortIDs(ids)
	return ids
}

// blockingHistory delays LatestAsOf until the context is done.
type blockingHistory struct {
	*memory.HistoryLog
}

func (b blockingHistory) LatestAsOf(ctx context.Context, kind domain.EntityKind, id uuid.UUID, t time.Time) (domain.HistoryRecord, bool, error) {
	<-ctx.Done()
	return domain.HistoryRecord{}, false, ctx.Err()
}

var errConnectionRefused = errors.New("connection refused")

// failingIndex simulates an unavailable related-change index.
type failingIndex struct{}

func (failingIndex) FindChangedChildren(context.Context, domain.ParentRef, domain.EntityKind, domain.ChangeWindow) ([]uuid.UUID, error) {
	return nil, domain.StoreError("find changed children", errConnectionRefused)
}

func (failingIndex) FindChangedParents(context.Context, domain.EntityKind, domain.ChangeWindow) ([]uuid.UUID, error) {
	return nil, domain.StoreError("find changed parents", errConnectionRefused)
}

// mapCache is a counting in-memory Cache.
type mapCache struct {
	mu      sync.Mutex
	reports map[string]domain.Report
	gets    int
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{reports: map[string]domain.Report{}}
}

func (c *mapCache) Get(_ context.Context, key string) (domain.Report, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	report, ok := c.reports[key]
	return report, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, report domain.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.reports[key] = report
	return nil
}
