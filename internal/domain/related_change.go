package domain

import (
	"time"

	"github.com/google/uuid"
)

// RelatedChangeIndexEntry records that a trigger entity changed and which
// ancestor it rolls up to. Rows are written by the CRUD layer and never updated.
type RelatedChangeIndexEntry struct {
	TriggerInstanceID uuid.UUID   `json:"trigger_instance_id"`
	TriggerModel      EntityKind  `json:"trigger_model"`
	ParentInstanceID  uuid.UUID   `json:"parent_instance_id"`
	ParentModel       EntityKind  `json:"parent_model"`
	ChangedTimestamp  time.Time   `json:"changed_timestamp"`
	HistoryType       HistoryType `json:"history_type"`
}

// ParentRef identifies the parent an index lookup is scoped to.
type ParentRef struct {
	Kind EntityKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}
