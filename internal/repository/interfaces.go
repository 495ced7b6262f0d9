package repository

import (
	"context"
	"time"

	"github.com/rpattn/changereport/internal/domain"

	"github.com/google/uuid"
)

// HistoryStore is read-only access to the append-only version log of one or more entity kinds.
type HistoryStore interface {
	// LatestAsOf returns the most recent record with history_date <= t.
	LatestAsOf(ctx context.Context, kind domain.EntityKind, id uuid.UUID, t time.Time) (domain.HistoryRecord, bool, error)
	// RecordsInWindow returns the records in (since, until] in ascending order.
	RecordsInWindow(ctx context.Context, kind domain.EntityKind, id uuid.UUID, window domain.ChangeWindow) ([]domain.HistoryRecord, error)
	// ChangedEntityIDs returns distinct ids with at least one record in the window, ascending.
	ChangedEntityIDs(ctx context.Context, kind domain.EntityKind, window domain.ChangeWindow) ([]uuid.UUID, error)
	// ChildrenAsOf returns ids whose latest record at t is not a DELETE and whose
	// parentField equals parentID, ascending.
	ChildrenAsOf(ctx context.Context, kind domain.EntityKind, parentField string, parentID uuid.UUID, t time.Time) ([]uuid.UUID, error)
}

// RelatedChangeIndex answers which descendants of a parent changed in a window.
type RelatedChangeIndex interface {
	// FindChangedChildren returns distinct trigger ids of triggerKind under parent, ascending.
	FindChangedChildren(ctx context.Context, parent domain.ParentRef, triggerKind domain.EntityKind, window domain.ChangeWindow) ([]uuid.UUID, error)
	// FindChangedParents returns distinct parent ids of parentKind with any descendant change, ascending.
	FindChangedParents(ctx context.Context, parentKind domain.EntityKind, window domain.ChangeWindow) ([]uuid.UUID, error)
}

// LiveStore reads current-state rows; used only as a fallback when history is incomplete.
type LiveStore interface {
	GetByIDs(ctx context.Context, kind domain.EntityKind, ids []uuid.UUID) ([]domain.LiveEntity, error)
}
