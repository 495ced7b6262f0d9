package reportcache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/changereport/internal/domain"
)

func sampleReport() domain.Report {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Report{
		Kind:   "unit",
		Window: domain.ChangeWindow{Since: since, Until: since.Add(24 * time.Hour)},
		Roots: []domain.ReportNode{{
			EntityID: uuid.New(),
			Kind:     "unit",
			Action:   domain.ActionModified,
			Fields:   map[string]any{"name": "Sunflower"},
			Children: []domain.ReportNode{},
		}},
	}
}

func TestLRUGetSet(t *testing.T) {
	cache, err := NewLRU(2)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	report := sampleReport()
	require.NoError(t, cache.Set(ctx, "a", report))
	got, ok, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report, got)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	cache, err := NewLRU(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", sampleReport()))
	require.NoError(t, cache.Set(ctx, "b", sampleReport()))
	_, _, _ = cache.Get(ctx, "a")
	require.NoError(t, cache.Set(ctx, "c", sampleReport()))

	assert.Equal(t, 2, cache.Len())
	_, ok, _ := cache.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = cache.Get(ctx, "a")
	assert.True(t, ok)
}

func TestNewLRUDefaultsSize(t *testing.T) {
	cache, err := NewLRU(0)
	require.NoError(t, err)
	assert.NotNil(t, cache)
}
