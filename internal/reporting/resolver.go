package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/entityloader"
	"github.com/rpattn/changereport/internal/reporting/metrics"
	"github.com/rpattn/changereport/internal/repository"
)

// SnapshotResolver answers "what did entity X look like at time T".
type SnapshotResolver struct {
	registry *Registry
	live     repository.LiveStore
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

// NewSnapshotResolver wires the resolver. live may be nil, in which case
// missing history is always unresolvable.
func NewSnapshotResolver(registry *Registry, live repository.LiveStore, logger *logrus.Logger, m *metrics.Metrics) *SnapshotResolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SnapshotResolver{registry: registry, live: live, logger: logger, metrics: m}
}

// SnapshotAt returns the view of the entity as of t. A DELETE record yields a
// view with Deleted set and the last known fields.
func (r *SnapshotResolver) SnapshotAt(ctx context.Context, kind domain.EntityKind, id uuid.UUID, t time.Time) (domain.EntityView, error) {
	spec, err := r.registry.Lookup(kind)
	if err != nil {
		return domain.EntityView{}, err
	}
	record, found, err := r.LatestAsOf(ctx, spec, id, t)
	if err != nil {
		return domain.EntityView{}, err
	}
	if found {
		return domain.NewViewFromHistory(record, t, spec.ParentField, spec.ModifiedField)
	}
	return r.fromLive(ctx, spec, id, t)
}

// LatestAsOf exposes the raw history lookup for the classifier.
func (r *SnapshotResolver) LatestAsOf(ctx context.Context, spec KindSpec, id uuid.UUID, t time.Time) (domain.HistoryRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.HistoryRecord{}, false, err
	}
	record, found, err := spec.History.LatestAsOf(ctx, spec.Kind, id, t)
	if err != nil {
		return domain.HistoryRecord{}, false, fmt.Errorf("latest %s %s as of %s: %w", spec.Kind, id, t.Format(time.RFC3339), err)
	}
	if found && record.HistoryDate.After(t) {
		return domain.HistoryRecord{}, false, fmt.Errorf("%w: store returned %s record dated after %s", domain.ErrStoreUnavailable, spec.Kind, t.Format(time.RFC3339))
	}
	return record, found, nil
}

func (r *SnapshotResolver) fromLive(ctx context.Context, spec KindSpec, id uuid.UUID, t time.Time) (domain.EntityView, error) {
	unresolvable := &domain.EntityUnresolvableError{Kind: spec.Kind, EntityID: id}
	if r.live == nil {
		unresolvable.Reason = "no history at or before " + t.Format(time.RFC3339)
		return domain.EntityView{}, unresolvable
	}

	var (
		entity domain.LiveEntity
		ok     bool
		err    error
	)
	if loader := entityloader.FromContext(ctx); loader != nil {
		entity, ok, err = loader.Load(ctx, spec.Kind, id)
	} else {
		var rows []domain.LiveEntity
		rows, err = r.live.GetByIDs(ctx, spec.Kind, []uuid.UUID{id})
		if err == nil && len(rows) > 0 {
			entity, ok = rows[0], true
		}
	}
	if err != nil {
		return domain.EntityView{}, fmt.Errorf("live fallback for %s %s: %w", spec.Kind, id, err)
	}
	if !ok {
		unresolvable.Reason = "no history and no live row"
		return domain.EntityView{}, unresolvable
	}

	view, err := domain.NewViewFromLive(entity, t, spec.ParentField, spec.ModifiedField)
	if err != nil {
		unresolvable.Reason = err.Error()
		return domain.EntityView{}, unresolvable
	}
	if view.ModifiedAt.After(t) {
		unresolvable.Reason = "live row modified after " + t.Format(time.RFC3339)
		return domain.EntityView{}, unresolvable
	}

	r.metrics.IncLiveFallback(string(spec.Kind))
	r.logger.WithFields(logrus.Fields{
		"kind":      spec.Kind,
		"entity_id": id,
		"as_of":     t.Format(time.RFC3339),
	}).Warn("history incomplete, resolved snapshot from live table")

	return view, nil
}
