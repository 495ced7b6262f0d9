package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCountersRecordAndAdd(t *testing.T) {
	var first Counters
	for _, action := range []Action{ActionCreated, ActionCreated, ActionDeleted, ActionMoved, ActionModified, ActionUnchanged} {
		first.Record(action)
	}
	assert.Equal(t, Counters{Created: 2, Modified: 1, Deleted: 1, Moved: 1, Unchanged: 1}, first)
	assert.Equal(t, 1, first.Net())
	assert.Equal(t, 6, first.Total())

	second := Counters{Created: 1, Deleted: 3}
	merged := first.Add(second)
	assert.Equal(t, first.Net()+second.Net(), merged.Net())
	assert.Equal(t, 3, merged.Created)
	assert.Equal(t, 4, merged.Deleted)
}

func TestSortIDs(t *testing.T) {
	ids := []uuid.UUID{
		uuid.MustParse("ffffffff-0000-0000-0000-000000000000"),
		uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		uuid.MustParse("00000000-0000-0000-0000-000000000001"),
	}
	SortIDs(ids)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", ids[0].String())
	assert.Equal(t, "ffffffff-0000-0000-0000-000000000000", ids[2].String())
	assert.Equal(t, 0, CompareIDs(ids[0], ids[0]))
}
