package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/repository"
)

var _ repository.RelatedChangeIndex = (*ChangeIndex)(nil)

// ChangeIndex is an in-memory related-change index.
type ChangeIndex struct {
	mu      sync.RWMutex
	entries []domain.RelatedChangeIndexEntry
}

func NewChangeIndex() *ChangeIndex {
	return &ChangeIndex{}
}

// Add appends index rows. Rows are never updated.
func (c *ChangeIndex) Add(entries ...domain.RelatedChangeIndexEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range entries {
		entry.ChangedTimestamp = entry.ChangedTimestamp.UTC()
		c.entries = append(c.entries, entry)
	}
}

func (c *ChangeIndex) FindChangedChildren(ctx context.Context, parent domain.ParentRef, triggerKind domain.EntityKind, window domain.ChangeWindow) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := map[uuid.UUID]struct{}{}
	ids := []uuid.UUID{}
	for _, entry := range c.entries {
		if entry.ParentModel != parent.Kind || entry.ParentInstanceID != parent.ID || entry.TriggerModel != triggerKind {
			continue
		}
		if !window.Contains(entry.ChangedTimestamp) {
			continue
		}
		if _, dup := seen[entry.TriggerInstanceID]; dup {
			continue
		}
		seen[entry.TriggerInstanceID] = struct{}{}
		ids = append(ids, entry.TriggerInstanceID)
	}
	domain.SortIDs(ids)
	return ids, nil
}

func (c *ChangeIndex) FindChangedParents(ctx context.Context, parentKind domain.EntityKind, window domain.ChangeWindow) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := map[uuid.UUID]struct{}{}
	ids := []uuid.UUID{}
	for _, entry := range c.entries {
		if entry.ParentModel != parentKind || !window.Contains(entry.ChangedTimestamp) {
			continue
		}
		if _, dup := seen[entry.ParentInstanceID]; dup {
			continue
		}
		seen[entry.ParentInstanceID] = struct{}{}
		ids = append(ids, entry.ParentInstanceID)
	}
	domain.SortIDs(ids)
	return ids, nil
}
