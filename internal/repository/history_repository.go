package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rpattn/changereport/internal/domain"
)

// Querier is the subset of pgxpool.Pool / pgx.Tx the read-only repositories need.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// historyRepository implements HistoryStore over one history table per kind.
type historyRepository struct {
	db     Querier
	tables map[domain.EntityKind]string
}

// NewHistoryRepository wires a HistoryStore backed by pgx. tables maps each kind
// to its history table name.
func NewHistoryRepository(db Querier, tables map[domain.EntityKind]string) (HistoryStore, error) {
	sanitized := make(map[domain.EntityKind]string, len(tables))
	for kind, table := range tables {
		if table == "" {
			return nil, fmt.Errorf("history table for %s is empty", kind)
		}
		sanitized[kind] = pgx.Identifier{table}.Sanitize()
	}
	return &historyRepository{db: db, tables: sanitized}, nil
}

func (r *historyRepository) table(kind domain.EntityKind) (string, error) {
	table, ok := r.tables[kind]
	if !ok {
		return "", fmt.Errorf("%w: no history table for %s", domain.ErrUnknownKind, kind)
	}
	return table, nil
}

// LatestAsOf returns the most recent record at or before t.
func (r *historyRepository) LatestAsOf(ctx context.Context, kind domain.EntityKind, id uuid.UUID, t time.Time) (domain.HistoryRecord, bool, error) {
	table, err := r.table(kind)
	if err != nil {
		return domain.HistoryRecord{}, false, err
	}

	row := r.db.QueryRow(ctx,
		`SELECT entity_id, history_date, history_type, fields
		 FROM `+table+`
		 WHERE entity_id = $1 AND history_date <= $2
		 ORDER BY history_date DESC
		 LIMIT 1`,
		id, t,
	)
	record, err := scanHistoryRecord(row, kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.HistoryRecord{}, false, nil
		}
		return domain.HistoryRecord{}, false, domain.StoreError("failed to load history as of "+t.Format(time.RFC3339), err)
	}
	return record, true, nil
}

// RecordsInWindow returns every record of id in (since, until], oldest first.
func (r *historyRepository) RecordsInWindow(ctx context.Context, kind domain.EntityKind, id uuid.UUID, window domain.ChangeWindow) ([]domain.HistoryRecord, error) {
	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT entity_id, history_date, history_type, fields
		 FROM `+table+`
		 WHERE entity_id = $1 AND history_date > $2 AND history_date <= $3
		 ORDER BY history_date ASC`,
		id, window.Since, window.Until,
	)
	if err != nil {
		return nil, domain.StoreError("failed to list history in window", err)
	}
	defer rows.Close()

	records := []domain.HistoryRecord{}
	for rows.Next() {
		record, scanErr := scanHistoryRecord(rows, kind)
		if scanErr != nil {
			return nil, domain.StoreError("failed to scan history record", scanErr)
		}
		records = append(records, record)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, domain.StoreError("failed to iterate history records", rowsErr)
	}
	return records, nil
}

// ChangedEntityIDs lists ids with any record in the window.
func (r *historyRepository) ChangedEntityIDs(ctx context.Context, kind domain.EntityKind, window domain.ChangeWindow) ([]uuid.UUID, error) {
	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT entity_id
		 FROM `+table+`
		 WHERE history_date > $1 AND history_date <= $2
		 ORDER BY entity_id`,
		window.Since, window.Until,
	)
	if err != nil {
		return nil, domain.StoreError("failed to list changed entities", err)
	}
	return collectIDs(rows)
}

// ChildrenAsOf lists live children of parentID as of t.
func (r *historyRepository) ChildrenAsOf(ctx context.Context, kind domain.EntityKind, parentField string, parentID uuid.UUID, t time.Time) ([]uuid.UUID, error) {
	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT entity_id FROM (
		     SELECT DISTINCT ON (entity_id) entity_id, history_type, fields
		     FROM `+table+`
		     WHERE history_date <= $1
		     ORDER BY entity_id, history_date DESC
		 ) latest
		 WHERE latest.history_type <> '-' AND latest.fields->>$2 = $3
		 ORDER BY entity_id`,
		t, parentField, parentID.String(),
	)
	if err != nil {
		return nil, domain.StoreError("failed to list children as of "+t.Format(time.RFC3339), err)
	}
	return collectIDs(rows)
}

func scanHistoryRecord(row pgx.Row, kind domain.EntityKind) (domain.HistoryRecord, error) {
	var (
		record     domain.HistoryRecord
		typeSymbol string
		fieldsJSON []byte
	)
	if err := row.Scan(&record.EntityID, &record.HistoryDate, &typeSymbol, &fieldsJSON); err != nil {
		return domain.HistoryRecord{}, err
	}

	historyType, err := domain.ParseHistoryType(typeSymbol)
	if err != nil {
		return domain.HistoryRecord{}, err
	}
	fields, err := domain.FromJSONBProperties(fieldsJSON)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("failed to decode fields for %s: %w", record.EntityID, err)
	}

	record.Kind = kind
	record.Type = historyType
	record.Fields = fields
	record.HistoryDate = record.HistoryDate.UTC()
	return record, nil
}

func collectIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, domain.StoreError("failed to scan id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("failed to iterate ids", err)
	}
	return ids, nil
}
