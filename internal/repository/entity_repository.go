package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/changereport/internal/domain"
)

// LiveTable names the current-state table of a kind and its modification column.
type LiveTable struct {
	Name          string
	UpdatedColumn string
}

// entityRepository implements LiveStore over the CRUD layer's live tables.
type entityRepository struct {
	db     Querier
	tables map[domain.EntityKind]LiveTable
}

// NewEntityRepository creates a live-table reader.
func NewEntityRepository(db Querier, tables map[domain.EntityKind]LiveTable) LiveStore {
	return &entityRepository{db: db, tables: tables}
}

// GetByIDs retrieves multiple live rows by their IDs. Missing ids are simply absent.
func (r *entityRepository) GetByIDs(ctx context.Context, kind domain.EntityKind, ids []uuid.UUID) ([]domain.LiveEntity, error) {
	if len(ids) == 0 {
		return []domain.LiveEntity{}, nil
	}
	table, ok := r.tables[kind]
	if !ok {
		// Kinds without a live table have no fallback rows.
		return []domain.LiveEntity{}, nil
	}
	updatedColumn := table.UpdatedColumn
	if updatedColumn == "" {
		updatedColumn = "updated_at"
	}

	rows, err := r.db.Query(ctx,
		`SELECT t.id, to_jsonb(t), t.`+pgx.Identifier{updatedColumn}.Sanitize()+`
		 FROM `+pgx.Identifier{table.Name}.Sanitize()+` t
		 WHERE t.id = ANY($1)
		 ORDER BY t.id`,
		ids,
	)
	if err != nil {
		return nil, domain.StoreError("failed to get live entities by IDs", err)
	}
	defer rows.Close()

	entities := make([]domain.LiveEntity, 0, len(ids))
	for rows.Next() {
		var (
			id        uuid.UUID
			propsJSON []byte
			updatedAt time.Time
		)
		if err := rows.Scan(&id, &propsJSON, &updatedAt); err != nil {
			return nil, domain.StoreError("failed to scan live entity", err)
		}
		entity, err := buildEntity(id, kind, propsJSON, updatedAt)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("failed to iterate live entities", err)
	}

	return entities, nil
}

func buildEntity(id uuid.UUID, kind domain.EntityKind, propertiesJSON []byte, updatedAt time.Time) (domain.LiveEntity, error) {
	properties, err := domain.FromJSONBProperties(propertiesJSON)
	if err != nil {
		return domain.LiveEntity{}, fmt.Errorf("failed to decode properties for entity %s: %w", id, err)
	}

	return domain.LiveEntity{
		ID:         id,
		Kind:       kind,
		Properties: properties,
		UpdatedAt:  updatedAt.UTC(),
	}, nil
}
