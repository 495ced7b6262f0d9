package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/entityloader"
)

// CountRequest selects the entities to aggregate. Parent optionally scopes the
// count to one direct parent through the related-change index.
type CountRequest struct {
	Kind   domain.EntityKind
	Window domain.ChangeWindow
	Parent *domain.ParentRef
}

// Count classifies every entity of a kind that changed in the window and tallies
// the net actions. Each entity counts once; transient entities count nothing.
func (s *Service) Count(ctx context.Context, req CountRequest) (domain.Counters, error) {
	var counters domain.Counters

	spec, err := s.registry.Lookup(req.Kind)
	if err != nil {
		return counters, err
	}
	window, err := domain.NewChangeWindow(req.Window.Since, req.Window.Until, s.maxWindowSpan)
	if err != nil {
		return counters, err
	}
	if req.Parent != nil {
		if _, err := s.registry.Lookup(req.Parent.Kind); err != nil {
			return counters, err
		}
		// Membership is decided on the direct parent reference only.
		if !s.registry.IsChildOf(req.Kind, req.Parent.Kind) {
			return counters, fmt.Errorf("%w: %s is not a direct parent of %s", domain.ErrInvalidScope, req.Parent.Kind, req.Kind)
		}
	}

	if _, ok := ctx.Deadline(); !ok && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if s.live != nil && entityloader.FromContext(ctx) == nil {
		ctx = entityloader.WithLoader(ctx, entityloader.NewLiveLoader(s.live))
	}

	var ids []uuid.UUID
	if req.Parent != nil {
		ids, err = s.index.FindChangedChildren(ctx, *req.Parent, req.Kind, window)
	} else {
		ids, err = spec.History.ChangedEntityIDs(ctx, req.Kind, window)
	}
	if err != nil {
		return counters, s.deadlineError(ctx, fmt.Errorf("count candidates for %s: %w", req.Kind, err), 0, 0)
	}

	start := time.Now()
	for i, id := range ids {
		cls, err := s.classifier.Classify(ctx, req.Kind, id, window)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotInWindow):
				continue
			case errors.Is(err, domain.ErrEntityUnresolvable):
				s.metrics.IncUnresolvable(string(req.Kind))
				s.logger.WithFields(logrus.Fields{"kind": req.Kind, "entity_id": id, "error": err}).
					Warn("skipping unresolvable entity in counters")
				continue
			default:
				return domain.Counters{}, s.deadlineError(ctx, err, i, len(ids))
			}
		}
		if cls.Transient {
			s.metrics.IncTransient(string(req.Kind))
			continue
		}
		if req.Parent != nil && !belongsTo(cls, req.Parent.ID) {
			continue
		}
		counters.Record(cls.Action)
	}

	s.logger.WithFields(logrus.Fields{
		"kind":     req.Kind,
		"since":    window.Since.Format(time.RFC3339),
		"until":    window.Until.Format(time.RFC3339),
		"total":    counters.Total(),
		"duration": time.Since(start).String(),
	}).Info("change counters computed")
	return counters, nil
}

func belongsTo(cls Classification, parentID uuid.UUID) bool {
	if cls.Current.ParentEquals(parentID) {
		return true
	}
	return cls.Previous != nil && cls.Previous.ParentEquals(parentID)
}
