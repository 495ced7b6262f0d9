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

var (
	base   = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	window = domain.ChangeWindow{Since: base.Add(time.Hour), Until: base.Add(5 * time.Hour)}
)

func TestHistoryLogAppendEnforcesSequence(t *testing.T) {
	log := NewHistoryLog()
	id := uuid.New()

	require.NoError(t, log.Append(domain.Created("unit", id, base, nil)))
	assert.Error(t, log.Append(domain.Updated("unit", id, base, nil)), "dates must increase")
	assert.Error(t, log.Append(domain.Created("unit", id, base.Add(time.Hour), nil)), "second create")
	require.NoError(t, log.Append(domain.Deleted("unit", id, base.Add(time.Hour), nil)))
	assert.Error(t, log.Append(domain.Updated("unit", id, base.Add(2*time.Hour), nil)), "after delete")

	assert.Panics(t, func() { log.MustAppend(domain.Updated("unit", uuid.New(), base, nil)) })
}

func TestHistoryLogLatestAsOf(t *testing.T) {
	log := NewHistoryLog()
	id := uuid.New()
	log.MustAppend(
		domain.Created("unit", id, base, map[string]any{"v": 1}),
		domain.Updated("unit", id, base.Add(2*time.Hour), map[string]any{"v": 2}),
	)
	ctx := context.Background()

	_, found, err := log.LatestAsOf(ctx, "unit", id, base.Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, found)

	record, found, err := log.LatestAsOf(ctx, "unit", id, base.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, record.Fields["v"])

	record, found, err = log.LatestAsOf(ctx, "unit", id, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, record.Fields["v"], "records at exactly t are visible")

	_, found, err = log.LatestAsOf(ctx, "placement", id, base.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, found, "kinds are separate")
}

func TestHistoryLogRecordsInWindowAndChangedIDs(t *testing.T) {
	log := NewHistoryLog()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	log.MustAppend(
		domain.Created("unit", a, base, nil),
		domain.Updated("unit", a, window.Since, nil),
		domain.Updated("unit", a, base.Add(3*time.Hour), nil),
		domain.Deleted("unit", a, window.Until, nil),
		domain.Created("unit", b, window.Until.Add(time.Second), nil),
		domain.Created("unit", c, base.Add(2*time.Hour), nil),
	)
	ctx := context.Background()

	records, err := log.RecordsInWindow(ctx, "unit", a, window)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].IsUpdate())
	assert.True(t, records[1].IsDelete())

	ids, err := log.ChangedEntityIDs(ctx, "unit", window)
	require.NoError(t, err)
	expected := []uuid.UUID{a, c}
	domain.SortIDs(expected)
	assert.Equal(t, expected, ids)
}

func TestHistoryLogChildrenAsOf(t *testing.T) {
	log := NewHistoryLog()
	parent, other := uuid.New(), uuid.New()
	stays, leaves, deleted, joinsLater := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	log.MustAppend(
		domain.Created("placement", stays, base, map[string]any{"unit_id": parent.String()}),
		domain.Created("placement", leaves, base, map[string]any{"unit_id": parent.String()}),
		domain.Updated("placement", leaves, base.Add(time.Hour), map[string]any{"unit_id": other.String()}),
		domain.Created("placement", deleted, base, map[string]any{"unit_id": parent.String()}),
		domain.Deleted("placement", deleted, base.Add(time.Hour), map[string]any{"unit_id": parent.String()}),
		domain.Created("placement", joinsLater, base.Add(10*time.Hour), map[string]any{"unit_id": parent.String()}),
	)

	ids, err := log.ChildrenAsOf(context.Background(), "placement", "unit_id", parent, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stays}, ids)
}

func TestHistoryLogHonoursCancelledContext(t *testing.T) {
	log := NewHistoryLog()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := log.LatestAsOf(ctx, "unit", uuid.New(), base)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = log.ChangedEntityIDs(ctx, "unit", window)
	assert.ErrorIs(t, err, context.Canceled)
}
