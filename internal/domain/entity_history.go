package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntityKind tags an entity family (organization, unit, placement, ...).
type EntityKind string

func (k EntityKind) String() string {
	return string(k)
}

// HistoryType is the mutation tag carried by every history row.
type HistoryType string

const (
	HistoryCreate HistoryType = "+"
	HistoryUpdate HistoryType = "~"
	HistoryDelete HistoryType = "-"
)

// ParseHistoryType maps the stored symbol to a HistoryType.
func ParseHistoryType(symbol string) (HistoryType, error) {
	switch HistoryType(symbol) {
	case HistoryCreate, HistoryUpdate, HistoryDelete:
		return HistoryType(symbol), nil
	default:
		return "", fmt.Errorf("unknown history type %q", symbol)
	}
}

// HistoryRecord is an immutable snapshot of an entity captured at a mutation.
type HistoryRecord struct {
	EntityID    uuid.UUID      `json:"entity_id"`
	Kind        EntityKind     `json:"model_name"`
	HistoryDate time.Time      `json:"history_date"`
	Type        HistoryType    `json:"history_type"`
	Fields      map[string]any `json:"fields"`
}

// Created builds the CREATE variant of a history record.
func Created(kind EntityKind, id uuid.UUID, at time.Time, fields map[string]any) HistoryRecord {
	return newHistoryRecord(kind, id, at, HistoryCreate, fields)
}

// Updated builds the UPDATE variant of a history record.
func Updated(kind EntityKind, id uuid.UUID, at time.Time, fields map[string]any) HistoryRecord {
	return newHistoryRecord(kind, id, at, HistoryUpdate, fields)
}

// Deleted builds the DELETE (tombstone) variant. Fields hold the last known state.
func Deleted(kind EntityKind, id uuid.UUID, at time.Time, fields map[string]any) HistoryRecord {
	return newHistoryRecord(kind, id, at, HistoryDelete, fields)
}

func newHistoryRecord(kind EntityKind, id uuid.UUID, at time.Time, typ HistoryType, fields map[string]any) HistoryRecord {
	return HistoryRecord{
		EntityID:    id,
		Kind:        kind,
		HistoryDate: at.UTC(),
		Type:        typ,
		Fields:      cloneProperties(fields),
	}
}

func (r HistoryRecord) IsCreate() bool { return r.Type == HistoryCreate }
func (r HistoryRecord) IsUpdate() bool { return r.Type == HistoryUpdate }
func (r HistoryRecord) IsDelete() bool { return r.Type == HistoryDelete }

// ValidateHistorySequence checks the append-only invariants for one entity:
// strictly increasing dates, CREATE first, DELETE (if any) last.
func ValidateHistorySequence(records []HistoryRecord) error {
	for i, record := range records {
		if i == 0 {
			if !record.IsCreate() {
				return fmt.Errorf("history for %s must start with CREATE, got %q", record.EntityID, record.Type)
			}
			continue
		}
		prev := records[i-1]
		if record.EntityID != prev.EntityID {
			return fmt.Errorf("history sequence mixes entities %s and %s", prev.EntityID, record.EntityID)
		}
		if !record.HistoryDate.After(prev.HistoryDate) {
			return fmt.Errorf("history for %s is not strictly increasing at %s", record.EntityID, record.HistoryDate.Format(time.RFC3339Nano))
		}
		if record.IsCreate() {
			return fmt.Errorf("history for %s has a second CREATE at %s", record.EntityID, record.HistoryDate.Format(time.RFC3339Nano))
		}
		if prev.IsDelete() {
			return fmt.Errorf("history for %s continues after DELETE", record.EntityID)
		}
	}
	return nil
}
