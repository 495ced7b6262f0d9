package reporting

import (
	"fmt"
	"sort"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/repository"
)

// IdentityRef points at a core identity entity whose modification also counts
// as a modification of the referencing kind (e.g. a placement denormalises its child).
type IdentityRef struct {
	Kind     domain.EntityKind
	RefField string
}

// KindSpec describes how the engine treats one entity kind.
type KindSpec struct {
	Kind    domain.EntityKind
	History repository.HistoryStore
	// ParentField holds the parent reference; empty for root kinds.
	ParentField string
	// ModifiedField holds the "last modified" timestamp; empty means history_date.
	ModifiedField string
	Children      []domain.EntityKind
	Denormalizes  *IdentityRef
	Root          bool
}

// Registry maps entity kinds to their specs.
type Registry struct {
	kinds map[domain.EntityKind]KindSpec
}

func NewRegistry() *Registry {
	return &Registry{kinds: make(map[domain.EntityKind]KindSpec)}
}

// Register adds or replaces a kind.
func (r *Registry) Register(spec KindSpec) {
	r.kinds[spec.Kind] = spec
}

// Lookup returns the spec for kind.
func (r *Registry) Lookup(kind domain.EntityKind) (KindSpec, error) {
	spec, ok := r.kinds[kind]
	if !ok {
		return KindSpec{}, fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	return spec, nil
}

// Kinds returns registered kinds in name order.
func (r *Registry) Kinds() []domain.EntityKind {
	kinds := make([]domain.EntityKind, 0, len(r.kinds))
	for kind := range r.kinds {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// IsChildOf reports whether parent declares child as a direct child kind.
func (r *Registry) IsChildOf(child, parent domain.EntityKind) bool {
	spec, ok := r.kinds[parent]
	if !ok {
		return false
	}
	for _, kind := range spec.Children {
		if kind == child {
			return true
		}
	}
	return false
}

// Validate checks references between kinds and rejects cyclic child relations.
func (r *Registry) Validate() error {
	if len(r.kinds) == 0 {
		return fmt.Errorf("registry has no kinds")
	}
	for _, kind := range r.Kinds() {
		spec := r.kinds[kind]
		if spec.History == nil {
			return fmt.Errorf("kind %s has no history store", kind)
		}
		if !spec.Root && spec.ParentField == "" {
			return fmt.Errorf("non-root kind %s has no parent field", kind)
		}
		for _, child := range spec.Children {
			childSpec, ok := r.kinds[child]
			if !ok {
				return fmt.Errorf("kind %s declares unknown child %s", kind, child)
			}
			if childSpec.ParentField == "" {
				return fmt.Errorf("child kind %s of %s has no parent field", child, kind)
			}
		}
		if spec.Denormalizes != nil {
			if _, ok := r.kinds[spec.Denormalizes.Kind]; !ok {
				return fmt.Errorf("kind %s denormalises unknown kind %s", kind, spec.Denormalizes.Kind)
			}
			if spec.Denormalizes.RefField == "" {
				return fmt.Errorf("kind %s denormalises %s without a reference field", kind, spec.Denormalizes.Kind)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[domain.EntityKind]int, len(r.kinds))
	var visit func(kind domain.EntityKind) error
	visit = func(kind domain.EntityKind) error {
		switch state[kind] {
		case visiting:
			return fmt.Errorf("child relations form a cycle at %s", kind)
		case done:
			return nil
		}
		state[kind] = visiting
		for _, child := range r.kinds[kind].Children {
			if err := visit(child); err != nil {
				return err
			}
		}
		state[kind] = done
		return nil
	}
	for _, kind := range r.Kinds() {
		if err := visit(kind); err != nil {
			return err
		}
	}
	return nil
}

// Childcare kinds used by the default registry.
const (
	KindOrganization domain.EntityKind = "organization"
	KindUnit         domain.EntityKind = "unit"
	KindPlacement    domain.EntityKind = "placement"
	KindChild        domain.EntityKind = "child"
	KindGuardian     domain.EntityKind = "guardian"
)

// DefaultChildcareKinds describes organization → unit → placement and
// organization → child → guardian, all served by one history store.
func DefaultChildcareKinds(history repository.HistoryStore) []KindSpec {
	return []KindSpec{
		{
			Kind:          KindOrganization,
			History:       history,
			ModifiedField: "modified_at",
			Children:      []domain.EntityKind{KindUnit, KindChild},
			Root:          true,
		},
		{
			Kind:          KindUnit,
			History:       history,
			ParentField:   "organization_id",
			ModifiedField: "modified_at",
			Children:      []domain.EntityKind{KindPlacement},
			Root:          true,
		},
		{
			Kind:          KindPlacement,
			History:       history,
			ParentField:   "unit_id",
			ModifiedField: "modified_at",
			Denormalizes:  &IdentityRef{Kind: KindChild, RefField: "child_id"},
		},
		{
			Kind:          KindChild,
			History:       history,
			ParentField:   "organization_id",
			ModifiedField: "modified_at",
			Children:      []domain.EntityKind{KindGuardian},
		},
		{
			Kind:          KindGuardian,
			History:       history,
			ParentField:   "child_id",
			ModifiedField: "modified_at",
		},
	}
}

// NewDefaultRegistry builds and validates the childcare registry.
func NewDefaultRegistry(history repository.HistoryStore) (*Registry, error) {
	registry := NewRegistry()
	for _, spec := range DefaultChildcareKinds(history) {
		registry.Register(spec)
	}
	if err := registry.Validate(); err != nil {
		return nil, err
	}
	return registry, nil
}
