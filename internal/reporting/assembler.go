package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/reporting/metrics"
	"github.com/rpattn/changereport/internal/repository"
)

// Assembler builds report trees for one root at a time.
type Assembler struct {
	registry   *Registry
	classifier *Classifier
	index      repository.RelatedChangeIndex
	logger     *logrus.Logger
	metrics    *metrics.Metrics
}

func NewAssembler(registry *Registry, classifier *Classifier, index repository.RelatedChangeIndex, logger *logrus.Logger, m *metrics.Metrics) *Assembler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Assembler{registry: registry, classifier: classifier, index: index, logger: logger, metrics: m}
}

// RootResult is the outcome of assembling one root.
type RootResult struct {
	Node       domain.ReportNode
	Included   bool
	Unresolved []domain.UnresolvedEntity
}

// AssembleRoot classifies the root and recursively attaches changed descendants.
// Roots are included even when unchanged; transient roots, roots that did not
// exist in the window and unresolvable roots are left out.
func (a *Assembler) AssembleRoot(ctx context.Context, kind domain.EntityKind, id uuid.UUID, window domain.ChangeWindow) (RootResult, error) {
	var result RootResult

	cls, err := a.classifier.Classify(ctx, kind, id, window)
	if err != nil {
		skip, handleErr := a.handleClassifyError(err, kind, id, nil, &result.Unresolved)
		if skip {
			return result, nil
		}
		return result, handleErr
	}
	if cls.Transient {
		a.metrics.IncTransient(string(kind))
		return result, nil
	}

	direction := domain.DirectionNone
	if cls.Relocated() {
		direction = domain.DirectionIn
	}
	node := newNode(kind, cls, direction)
	a.metrics.IncClassified(string(kind), string(node.Action))

	children, err := a.assembleChildren(ctx, kind, id, cls, window, &result.Unresolved)
	if err != nil {
		return result, err
	}
	node.Children = children

	result.Node = node
	result.Included = true
	return result, nil
}

func (a *Assembler) assembleChildren(
	ctx context.Context,
	parentKind domain.EntityKind,
	parentID uuid.UUID,
	parent Classification,
	window domain.ChangeWindow,
	unresolved *[]domain.UnresolvedEntity,
) ([]domain.ReportNode, error) {
	spec, err := a.registry.Lookup(parentKind)
	if err != nil {
		return nil, err
	}

	children := []domain.ReportNode{}
	for _, childKind := range spec.Children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		childSpec, err := a.registry.Lookup(childKind)
		if err != nil {
			return nil, err
		}

		changed, err := a.index.FindChangedChildren(ctx, domain.ParentRef{Kind: parentKind, ID: parentID}, childKind, window)
		if err != nil {
			return nil, fmt.Errorf("changed %s under %s %s: %w", childKind, parentKind, parentID, err)
		}
		candidates := changed
		if parent.Moved() {
			// Re-parented entities bring their current subtree into the new parent's report.
			forced, err := childSpec.History.ChildrenAsOf(ctx, childKind, childSpec.ParentField, parentID, window.Until)
			if err != nil {
				return nil, fmt.Errorf("children of moved %s %s: %w", parentKind, parentID, err)
			}
			candidates = MergeIDs(changed, forced)
		}

		for _, childID := range candidates {
			node, ok, err := a.assembleChild(ctx, childKind, childID, parentID, window, unresolved)
			if err != nil {
				return nil, err
			}
			if ok {
				children = append(children, node)
			}
		}
	}

	sort.SliceStable(children, func(i, j int) bool {
		if cmp := domain.CompareIDs(children[i].EntityID, children[j].EntityID); cmp != 0 {
			return cmp < 0
		}
		return children[i].Kind < children[j].Kind
	})
	return children, nil
}

func (a *Assembler) assembleChild(
	ctx context.Context,
	kind domain.EntityKind,
	id uuid.UUID,
	parentID uuid.UUID,
	window domain.ChangeWindow,
	unresolved *[]domain.UnresolvedEntity,
) (domain.ReportNode, bool, error) {
	cls, err := a.classifier.Classify(ctx, kind, id, window)
	if err != nil {
		skip, handleErr := a.handleClassifyError(err, kind, id, &parentID, unresolved)
		if skip {
			return domain.ReportNode{}, false, nil
		}
		return domain.ReportNode{}, false, handleErr
	}
	if cls.Transient {
		a.metrics.IncTransient(string(kind))
		return domain.ReportNode{}, false, nil
	}

	underNow := cls.Current.ParentEquals(parentID)
	underBefore := cls.Previous != nil && cls.Previous.ParentEquals(parentID)

	switch {
	case !underNow && underBefore:
		// Bookkeeping appearance under the old parent, carrying the final action;
		// the subtree is reported under the new one.
		node := newNode(kind, cls, domain.DirectionOut)
		a.metrics.IncClassified(string(kind), string(node.Action))
		return node, true, nil
	case !underNow:
		// Index entry points at a parent the entity neither left nor joined.
		return domain.ReportNode{}, false, nil
	}

	direction := domain.DirectionNone
	if cls.Relocated() {
		direction = domain.DirectionIn
	}
	node := newNode(kind, cls, direction)
	a.metrics.IncClassified(string(kind), string(node.Action))

	children, err := a.assembleChildren(ctx, kind, id, cls, window, unresolved)
	if err != nil {
		return domain.ReportNode{}, false, err
	}
	node.Children = children
	return node, true, nil
}

// handleClassifyError decides whether a classification error drops the node
// (skip) or aborts the whole assembly.
func (a *Assembler) handleClassifyError(err error, kind domain.EntityKind, id uuid.UUID, parentID *uuid.UUID, unresolved *[]domain.UnresolvedEntity) (bool, error) {
	switch {
	case errors.Is(err, domain.ErrNotInWindow):
		return true, nil
	case errors.Is(err, domain.ErrEntityUnresolvable):
		a.metrics.IncUnresolvable(string(kind))
		fields := logrus.Fields{"kind": kind, "entity_id": id, "error": err}
		if parentID != nil {
			fields["parent_id"] = *parentID
		}
		a.logger.WithFields(fields).Warn("dropping unresolvable entity from report")
		*unresolved = append(*unresolved, domain.UnresolvedEntity{
			EntityID: id,
			Kind:     kind,
			ParentID: parentID,
			Reason:   err.Error(),
		})
		return true, nil
	default:
		return false, err
	}
}

func newNode(kind domain.EntityKind, cls Classification, direction domain.Direction) domain.ReportNode {
	node := domain.ReportNode{
		EntityID:      cls.Current.EntityID,
		Kind:          kind,
		Action:        cls.Action,
		Direction:     direction,
		ParentID:      cls.Current.ParentID,
		Fields:        cls.Current.Fields,
		ChangedFields: cls.ChangedFields,
		Children:      []domain.ReportNode{},
	}
	if cls.Relocated() {
		node.PreviousParentID = cls.Previous.ParentID
	}
	return node
}
