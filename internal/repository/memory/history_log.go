package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/repository"
)

var _ repository.HistoryStore = (*HistoryLog)(nil)

type historyKey struct {
	kind domain.EntityKind
	id   uuid.UUID
}

// HistoryLog is an append-only, in-memory history store for any number of kinds.
type HistoryLog struct {
	mu      sync.RWMutex
	records map[historyKey][]domain.HistoryRecord
}

// NewHistoryLog creates an empty log.
func NewHistoryLog() *HistoryLog {
	return &HistoryLog{records: make(map[historyKey][]domain.HistoryRecord)}
}

// Append adds records, enforcing the per-entity sequence invariants.
func (l *HistoryLog) Append(records ...domain.HistoryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, record := range records {
		key := historyKey{kind: record.Kind, id: record.EntityID}
		candidate := append(append([]domain.HistoryRecord(nil), l.records[key]...), record)
		if err := domain.ValidateHistorySequence(candidate); err != nil {
			return fmt.Errorf("append %s %s: %w", record.Kind, record.EntityID, err)
		}
		l.records[key] = candidate
	}
	return nil
}

// MustAppend is Append for fixtures.
func (l *HistoryLog) MustAppend(records ...domain.HistoryRecord) {
	if err := l.Append(records...); err != nil {
		panic(err)
	}
}

func (l *HistoryLog) LatestAsOf(ctx context.Context, kind domain.EntityKind, id uuid.UUID, t time.Time) (domain.HistoryRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.HistoryRecord{}, false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	return latestAsOf(l.records[historyKey{kind: kind, id: id}], t)
}

func (l *HistoryLog) RecordsInWindow(ctx context.Context, kind domain.EntityKind, id uuid.UUID, window domain.ChangeWindow) ([]domain.HistoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []domain.HistoryRecord{}
	for _, record := range l.records[historyKey{kind: kind, id: id}] {
		if window.Contains(record.HistoryDate) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (l *HistoryLog) ChangedEntityIDs(ctx context.Context, kind domain.EntityKind, window domain.ChangeWindow) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := []uuid.UUID{}
	for key, records := range l.records {
		if key.kind != kind {
			continue
		}
		for _, record := range records {
			if window.Contains(record.HistoryDate) {
				ids = append(ids, key.id)
				break
			}
		}
	}
	domain.SortIDs(ids)
	return ids, nil
}

func (l *HistoryLog) ChildrenAsOf(ctx context.Context, kind domain.EntityKind, parentField string, parentID uuid.UUID, t time.Time) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := []uuid.UUID{}
	for key, records := range l.records {
		if key.kind != kind {
			continue
		}
		latest, ok, _ := latestAsOf(records, t)
		if !ok || latest.IsDelete() {
			continue
		}
		ref, err := domain.UUIDField(latest.Fields, parentField)
		if err != nil || ref == nil || *ref != parentID {
			continue
		}
		ids = append(ids, key.id)
	}
	domain.SortIDs(ids)
	return ids, nil
}

func latestAsOf(records []domain.HistoryRecord, t time.Time) (domain.HistoryRecord, bool, error) {
	idx := sort.Search(len(records), func(i int) bool {
		return records[i].HistoryDate.After(t)
	})
	if idx == 0 {
		return domain.HistoryRecord{}, false, nil
	}
	return records[idx-1], true, nil
}
