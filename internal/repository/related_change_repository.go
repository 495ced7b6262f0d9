package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpattn/changereport/internal/domain"
)

type relatedChangeRepository struct {
	db Querier
}

// NewRelatedChangeRepository wires the related-change index backed by the
// related_change_index table and its (parent_model, parent_instance_id, changed_timestamp) index.
func NewRelatedChangeRepository(db Querier) RelatedChangeIndex {
	return &relatedChangeRepository{db: db}
}

func (r *relatedChangeRepository) FindChangedChildren(
	ctx context.Context,
	parent domain.ParentRef,
	triggerKind domain.EntityKind,
	window domain.ChangeWindow,
) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT trigger_instance_id
		 FROM related_change_index
		 WHERE parent_model = $1
		   AND parent_instance_id = $2
		   AND trigger_model = $3
		   AND changed_timestamp > $4
		   AND changed_timestamp <= $5
		 ORDER BY trigger_instance_id`,
		string(parent.Kind),
		parent.ID,
		string(triggerKind),
		window.Since,
		window.Until,
	)
	if err != nil {
		return nil, domain.StoreError("failed to query related change index", err)
	}
	return collectIDs(rows)
}

func (r *relatedChangeRepository) FindChangedParents(
	ctx context.Context,
	parentKind domain.EntityKind,
	window domain.ChangeWindow,
) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT parent_instance_id
		 FROM related_change_index
		 WHERE parent_model = $1
		   AND changed_timestamp > $2
		   AND changed_timestamp <= $3
		 ORDER BY parent_instance_id`,
		string(parentKind),
		window.Since,
		window.Until,
	)
	if err != nil {
		return nil, domain.StoreError("failed to query related change parents", err)
	}
	return collectIDs(rows)
}
