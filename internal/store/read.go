package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rewind/internal/history"
)

const recordColumns = `id, collection, fields, version, created_by, created_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// LoadLatest returns the current state of a record.
// Returns ErrRecordNotFound if the record does not exist.
func (s *Store) LoadLatest(ctx context.Context, id string) (*history.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	return rec, nil
}

// ListRecords returns every record in collection, or all records when
// collection is empty. Ordered by created_at, id COLLATE BINARY.
//
// Returns an empty slice (not nil) if there are no records.
func (s *Store) ListRecords(ctx context.Context, collection string) ([]*history.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records`
	var args []any
	if collection != "" {
		query += ` WHERE collection = ?`
		args = append(args, collection)
	}
	query += ` ORDER BY created_at ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []*history.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// LoadDiffLog returns every entry of a record with version >= minVersion,
// in the requested order. The read is a single query, so it observes one
// consistent snapshot of the log.
//
// Returns an empty slice (not nil) if there are no entries.
func (s *Store) LoadDiffLog(ctx context.Context, id string, minVersion int64, order history.Order) ([]history.DiffEntry, error) {
	direction := "ASC"
	if order == history.Descending {
		direction = "DESC"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, version, payload, username, reason, checksum, created_at
		FROM diffs
		WHERE entity_id = ? AND version >= ?
		ORDER BY version `+direction,
		id, minVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("query diffs: %w", err)
	}
	defer rows.Close()

	entries := []history.DiffEntry{}
	for rows.Next() {
		var (
			e       history.DiffEntry
			payload string
			at      string
		)
		if err := rows.Scan(&e.EntityID, &e.Version, &payload, &e.User, &e.Reason, &e.Checksum, &at); err != nil {
			return nil, fmt.Errorf("scan diff: %w", err)
		}
		if e.Payload, err = unmarshalPayload(payload); err != nil {
			return nil, fmt.Errorf("diff %s@%d: %w", e.EntityID, e.Version, err)
		}
		if e.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("diff %s@%d: %w", e.EntityID, e.Version, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diffs: %w", err)
	}
	return entries, nil
}

func scanRecord(row rowScanner) (*history.Record, error) {
	var (
		rec       history.Record
		fields    string
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Collection,
		&fields,
		&rec.Version,
		&rec.CreatedBy.Username,
		&rec.CreatedBy.Reason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rec.Fields, err = unmarshalFields(fields); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
