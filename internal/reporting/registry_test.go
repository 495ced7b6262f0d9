package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/repository/memory"
)

func TestDefaultRegistryIsValid(t *testing.T) {
	registry, err := NewDefaultRegistry(memory.NewHistoryLog())
	require.NoError(t, err)

	assert.Equal(t, []domain.EntityKind{KindChild, KindGuardian, KindOrganization, KindPlacement, KindUnit}, registry.Kinds())

	unit, err := registry.Lookup(KindUnit)
	require.NoError(t, err)
	assert.True(t, unit.Root)
	assert.Equal(t, "organization_id", unit.ParentField)
	assert.Equal(t, []domain.EntityKind{KindPlacement}, unit.Children)

	_, err = registry.Lookup("invoice")
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestRegistryValidate(t *testing.T) {
	history := memory.NewHistoryLog()

	tests := []struct {
		name  string
		specs []KindSpec
		want  string
	}{
		{name: "empty", want: "no kinds"},
		{
			name:  "missing history",
			specs: []KindSpec{{Kind: "a", Root: true}},
			want:  "no history store",
		},
		{
			name:  "non-root without parent field",
			specs: []KindSpec{{Kind: "a", History: history}},
			want:  "no parent field",
		},
		{
			name:  "unknown child",
			specs: []KindSpec{{Kind: "a", History: history, Root: true, Children: []domain.EntityKind{"b"}}},
			want:  "unknown child",
		},
		{
			name: "unknown denormalised kind",
			specs: []KindSpec{{
				Kind: "a", History: history, Root: true,
				Denormalizes: &IdentityRef{Kind: "b", RefField: "b_id"},
			}},
			want: "denormalises unknown kind",
		},
		{
			name: "cycle",
			specs: []KindSpec{
				{Kind: "a", History: history, Root: true, ParentField: "b_id", Children: []domain.EntityKind{"b"}},
				{Kind: "b", History: history, ParentField: "a_id", Children: []domain.EntityKind{"a"}},
			},
			want: "cycle",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			for _, spec := range tt.specs {
				registry.Register(spec)
			}
			err := registry.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegistryIsChildOf(t *testing.T) {
	registry, err := NewDefaultRegistry(memory.NewHistoryLog())
	require.NoError(t, err)

	assert.True(t, registry.IsChildOf(KindUnit, KindOrganization))
	assert.True(t, registry.IsChildOf(KindPlacement, KindUnit))
	assert.False(t, registry.IsChildOf(KindPlacement, KindOrganization))
	assert.False(t, registry.IsChildOf(KindUnit, "invoice"))
}
