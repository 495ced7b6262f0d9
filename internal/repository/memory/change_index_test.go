package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/changereport/internal/domain"
)

func TestChangeIndexLookups(t *testing.T) {
	index := NewChangeIndex()
	unit, otherUnit := uuid.New(), uuid.New()
	p1, p2 := uuid.New(), uuid.New()

	entry := func(trigger, parent uuid.UUID, parentKind domain.EntityKind, at time.Time) domain.RelatedChangeIndexEntry {
		return domain.RelatedChangeIndexEntry{
			TriggerInstanceID: trigger,
			TriggerModel:      "placement",
			ParentInstanceID:  parent,
			ParentModel:       parentKind,
			ChangedTimestamp:  at,
			HistoryType:       domain.HistoryUpdate,
		}
	}
	index.Add(
		entry(p1, unit, "unit", base.Add(2*time.Hour)),
		entry(p1, unit, "unit", base.Add(3*time.Hour)),
		entry(p2, unit, "unit", window.Since),
		entry(p2, otherUnit, "unit", window.Until),
	)
	ctx := context.Background()

	ids, err := index.FindChangedChildren(ctx, domain.ParentRef{Kind: "unit", ID: unit}, "placement", window)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p1}, ids, "distinct and half-open")

	ids, err = index.FindChangedChildren(ctx, domain.ParentRef{Kind: "unit", ID: unit}, "guardian", window)
	require.NoError(t, err)
	assert.Empty(t, ids)

	parents, err := index.FindChangedParents(ctx, "unit", window)
	require.NoError(t, err)
	expected := []uuid.UUID{unit, otherUnit}
	domain.SortIDs(expected)
	assert.Equal(t, expected, parents)
}
