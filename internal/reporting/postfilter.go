package reporting

import (
	"github.com/google/uuid"

	"github.com/rpattn/changereport/internal/domain"
)

// IsTransient reports whether an entity had no existence outside the window:
// its in-window records (ascending) start with CREATE and end with DELETE, or a
// CREATE and DELETE share the same instant.
func IsTransient(records []domain.HistoryRecord) bool {
	if len(records) == 0 {
		return false
	}
	if records[0].IsCreate() && records[len(records)-1].IsDelete() {
		return true
	}
	for _, created := range records {
		if !created.IsCreate() {
			continue
		}
		for _, deleted := range records {
			if deleted.IsDelete() && deleted.HistoryDate.Equal(created.HistoryDate) {
				return true
			}
		}
	}
	return false
}

// MergeIDs unions candidate id lists, dropping duplicates, in ascending order.
func MergeIDs(lists ...[]uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	merged := make([]uuid.UUID, 0)
	for _, list := range lists {
		for _, id := range list {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	domain.SortIDs(merged)
	return merged
}
