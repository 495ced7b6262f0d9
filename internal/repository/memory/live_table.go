package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/repository"
)

var _ repository.LiveStore = (*LiveTable)(nil)

// LiveTable holds current-state rows keyed by kind and id.
type LiveTable struct {
	mu    sync.RWMutex
	rows  map[historyKey]domain.LiveEntity
	calls int
}

func NewLiveTable() *LiveTable {
	return &LiveTable{rows: make(map[historyKey]domain.LiveEntity)}
}

// Put stores or replaces a live row.
func (t *LiveTable) Put(entity domain.LiveEntity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[historyKey{kind: entity.Kind, id: entity.ID}] = entity
}

func (t *LiveTable) GetByIDs(ctx context.Context, kind domain.EntityKind, ids []uuid.UUID) ([]domain.LiveEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++

	out := make([]domain.LiveEntity, 0, len(ids))
	for _, id := range ids {
		if row, ok := t.rows[historyKey{kind: kind, id: id}]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// Calls reports how many GetByIDs round trips were made.
func (t *LiveTable) Calls() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.calls
}
