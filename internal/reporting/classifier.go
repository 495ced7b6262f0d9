package reporting

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/changereport/internal/domain"
)

// Classification is the net change of one entity over a window.
type Classification struct {
	Action   domain.Action
	Current  domain.EntityView
	Previous *domain.EntityView
	// Records are the in-window history records, oldest first.
	Records []domain.HistoryRecord
	// Transient is set when the entity was created and deleted inside the window.
	Transient     bool
	ChangedFields []string
}

// Moved reports whether the parent reference changed between the boundaries.
func (c Classification) Moved() bool {
	return c.Action == domain.ActionMoved
}

// Relocated reports whether the entity sat under a different parent at since,
// whatever its final action. A unit moved and then deleted is relocated but not moved.
func (c Classification) Relocated() bool {
	return c.Previous != nil && !sameParent(c.Previous.ParentID, c.Current.ParentID)
}

// Classifier assigns one action per entity and window using boundary snapshots only.
type Classifier struct {
	registry *Registry
	resolver *SnapshotResolver
	logger   *logrus.Logger
}

func NewClassifier(registry *Registry, resolver *SnapshotResolver, logger *logrus.Logger) *Classifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Classifier{registry: registry, resolver: resolver, logger: logger}
}

// Classify resolves the entity at the window's boundaries and returns its action.
// Precedence: DELETED, CREATED, MOVED, MODIFIED, UNCHANGED.
func (c *Classifier) Classify(ctx context.Context, kind domain.EntityKind, id uuid.UUID, window domain.ChangeWindow) (Classification, error) {
	spec, err := c.registry.Lookup(kind)
	if err != nil {
		return Classification{}, err
	}

	current, err := c.resolver.SnapshotAt(ctx, kind, id, window.Until)
	if err != nil {
		return Classification{}, err
	}
	if current.Deleted && !window.Contains(current.RecordDate) {
		return Classification{}, fmt.Errorf("%w: %s %s deleted at %s", domain.ErrNotInWindow, kind, id, current.RecordDate)
	}

	records, err := spec.History.RecordsInWindow(ctx, kind, id, window)
	if err != nil {
		return Classification{}, fmt.Errorf("records of %s %s in %s: %w", kind, id, window, err)
	}

	cls := Classification{
		Current:   current,
		Records:   records,
		Transient: IsTransient(records),
	}

	// An entity created inside the window has no state at since.
	created := containsCreate(records)
	if !created {
		previous, err := c.previous(ctx, kind, id, window)
		if err != nil {
			return Classification{}, err
		}
		cls.Previous = previous
	}

	if current.Deleted {
		cls.Action = domain.ActionDeleted
		return cls, nil
	}
	if created {
		cls.Action = domain.ActionCreated
		return cls, nil
	}
	previous := cls.Previous

	if previous != nil {
		changed, err := domain.ChangedFields(previous.Fields, current.Fields, spec.ModifiedField)
		if err != nil {
			return Classification{}, fmt.Errorf("diff %s %s: %w", kind, id, err)
		}
		cls.ChangedFields = changed
	}

	switch {
	case spec.ParentField != "" && previous != nil && !sameParent(previous.ParentID, current.ParentID):
		cls.Action = domain.ActionMoved
	case window.Contains(current.ModifiedAt):
		cls.Action = domain.ActionModified
	default:
		modified, err := c.identityModified(ctx, spec, current, window)
		if err != nil {
			return Classification{}, err
		}
		if modified {
			cls.Action = domain.ActionModified
		} else {
			cls.Action = domain.ActionUnchanged
		}
	}
	return cls, nil
}

// previous resolves the snapshot at since. An entity that cannot be resolved
// at since has no previous state to compare against.
func (c *Classifier) previous(ctx context.Context, kind domain.EntityKind, id uuid.UUID, window domain.ChangeWindow) (*domain.EntityView, error) {
	view, err := c.resolver.SnapshotAt(ctx, kind, id, window.Since)
	if err != nil {
		if errors.Is(err, domain.ErrEntityUnresolvable) {
			return nil, nil
		}
		return nil, err
	}
	if view.Deleted {
		return nil, nil
	}
	return &view, nil
}

// identityModified checks the core identity entity the kind denormalises.
func (c *Classifier) identityModified(ctx context.Context, spec KindSpec, current domain.EntityView, window domain.ChangeWindow) (bool, error) {
	if spec.Denormalizes == nil {
		return false, nil
	}
	refID, err := domain.UUIDField(current.Fields, spec.Denormalizes.RefField)
	if err != nil || refID == nil {
		return false, nil
	}
	identity, err := c.resolver.SnapshotAt(ctx, spec.Denormalizes.Kind, *refID, window.Until)
	if err != nil {
		if errors.Is(err, domain.ErrEntityUnresolvable) {
			c.logger.WithFields(logrus.Fields{
				"kind":      spec.Denormalizes.Kind,
				"entity_id": *refID,
			}).Debug("denormalised identity unresolvable, ignoring for modification check")
			return false, nil
		}
		return false, err
	}
	return window.Contains(identity.ModifiedAt), nil
}

func containsCreate(records []domain.HistoryRecord) bool {
	for _, record := range records {
		if record.IsCreate() {
			return true
		}
	}
	return false
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
