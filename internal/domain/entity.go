package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LiveEntity is a row from the live (current-state) table of an entity kind.
// It is only consulted when history is incomplete.
type LiveEntity struct {
	ID         uuid.UUID      `json:"id"`
	Kind       EntityKind     `json:"kind"`
	Properties map[string]any `json:"properties"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ViewSource records where a snapshot came from.
type ViewSource string

const (
	SourceHistory ViewSource = "history"
	SourceLive    ViewSource = "live"
)

// EntityView is the state of an entity as of a given instant.
type EntityView struct {
	EntityID   uuid.UUID      `json:"entity_id"`
	Kind       EntityKind     `json:"kind"`
	Fields     map[string]any `json:"fields"`
	ParentID   *uuid.UUID     `json:"parent_id,omitempty"`
	ModifiedAt time.Time      `json:"modified_at"`
	AsOf       time.Time      `json:"as_of"`
	Deleted    bool           `json:"deleted"`
	Source     ViewSource     `json:"source"`
	// RecordDate is the history_date of the record the view was built from.
	RecordDate time.Time `json:"record_date"`
}

// NewViewFromHistory builds a view from the record visible at asOf.
func NewViewFromHistory(record HistoryRecord, asOf time.Time, parentField, modifiedField string) (EntityView, error) {
	view := EntityView{
		EntityID:   record.EntityID,
		Kind:       record.Kind,
		Fields:     cloneProperties(record.Fields),
		AsOf:       asOf,
		Deleted:    record.IsDelete(),
		Source:     SourceHistory,
		RecordDate: record.HistoryDate,
		ModifiedAt: record.HistoryDate,
	}
	if err := view.applyReferences(parentField, modifiedField); err != nil {
		return EntityView{}, err
	}
	return view, nil
}

// NewViewFromLive builds a best-effort view from the live row.
func NewViewFromLive(entity LiveEntity, asOf time.Time, parentField, modifiedField string) (EntityView, error) {
	view := EntityView{
		EntityID:   entity.ID,
		Kind:       entity.Kind,
		Fields:     cloneProperties(entity.Properties),
		AsOf:       asOf,
		Source:     SourceLive,
		RecordDate: entity.UpdatedAt,
		ModifiedAt: entity.UpdatedAt,
	}
	if err := view.applyReferences(parentField, modifiedField); err != nil {
		return EntityView{}, err
	}
	return view, nil
}

func (v *EntityView) applyReferences(parentField, modifiedField string) error {
	if parentField != "" {
		parentID, err := UUIDField(v.Fields, parentField)
		if err != nil {
			return fmt.Errorf("parent reference of %s %s: %w", v.Kind, v.EntityID, err)
		}
		v.ParentID = parentID
	}
	if modifiedField != "" {
		modifiedAt, ok, err := TimeField(v.Fields, modifiedField)
		if err != nil {
			return fmt.Errorf("modified timestamp of %s %s: %w", v.Kind, v.EntityID, err)
		}
		if ok {
			v.ModifiedAt = modifiedAt
		}
	}
	return nil
}

// ParentEquals reports whether the view's parent reference is id.
func (v EntityView) ParentEquals(id uuid.UUID) bool {
	return v.ParentID != nil && *v.ParentID == id
}

// UUIDField reads a uuid-valued property; missing or null yields nil.
func UUIDField(fields map[string]any, key string) (*uuid.UUID, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch typed := raw.(type) {
	case uuid.UUID:
		id := typed
		return &id, nil
	case string:
		if strings.TrimSpace(typed) == "" {
			return nil, nil
		}
		id, err := uuid.Parse(typed)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		return &id, nil
	default:
		return nil, fmt.Errorf("field %s has unsupported type %T", key, raw)
	}
}

// TimeField reads a timestamp-valued property (time.Time or RFC 3339 string).
func TimeField(fields map[string]any, key string) (time.Time, bool, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return time.Time{}, false, nil
	}
	switch typed := raw.(type) {
	case time.Time:
		return typed.UTC(), true, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, typed)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("field %s: %w", key, err)
		}
		return parsed.UTC(), true, nil
	default:
		return time.Time{}, false, fmt.Errorf("field %s has unsupported type %T", key, raw)
	}
}

// FromJSONBProperties creates properties map from JSONB data
func FromJSONBProperties(propertiesJSON json.RawMessage) (map[string]any, error) {
	if len(propertiesJSON) == 0 {
		return map[string]any{}, nil
	}
	var properties map[string]any
	if err := json.Unmarshal(propertiesJSON, &properties); err != nil {
		return nil, err
	}
	if properties == nil {
		properties = map[string]any{}
	}
	return properties, nil
}
