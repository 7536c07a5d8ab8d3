package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rewind/internal/history"
)

// CreateRecord inserts a new record. The record's version must be the
// creation version.
func (s *Store) CreateRecord(ctx context.Context, rec *history.Record) error {
	if rec.Version != history.CreationVersion {
		return fmt.Errorf("create record: new record must be at version %d, got %d", history.CreationVersion, rec.Version)
	}
	fieldsJSON, err := marshalFields(rec.Fields)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records
		(id, collection, fields, version, created_by, created_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Collection,
		fieldsJSON,
		rec.Version,
		rec.CreatedBy.Username,
		rec.CreatedBy.Reason,
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// AppendDiff stores rec's new fields and version and appends entry, in one
// transaction. The write only succeeds if the stored record is at
// entry.Version-1; otherwise ErrVersionConflict is returned and nothing is
// written.
func (s *Store) AppendDiff(ctx context.Context, rec *history.Record, entry history.DiffEntry) error {
	if entry.EntityID != rec.ID {
		return fmt.Errorf("append diff: entry for %q does not belong to record %q", entry.EntityID, rec.ID)
	}
	if entry.Version != rec.Version {
		return fmt.Errorf("append diff: entry version %d does not match record version %d", entry.Version, rec.Version)
	}

	fieldsJSON, err := marshalFields(rec.Fields)
	if err != nil {
		return fmt.Errorf("append diff: %w", err)
	}
	payloadJSON, err := marshalPayload(entry.Payload)
	if err != nil {
		return fmt.Errorf("append diff: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after Commit is a no-op

	res, err := tx.ExecContext(ctx, `
		UPDATE records
		SET fields = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		fieldsJSON,
		entry.Version,
		formatTime(rec.UpdatedAt),
		rec.ID,
		entry.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if n == 0 {
		return s.conflictError(ctx, tx, rec.ID, entry.Version-1)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO diffs
		(entity_id, version, payload, username, reason, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.EntityID,
		entry.Version,
		payloadJSON,
		entry.User,
		entry.Reason,
		entry.Checksum,
		formatTime(entry.At),
	)
	if err != nil {
		return fmt.Errorf("insert diff: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// conflictError distinguishes a missing record from a stale version.
func (s *Store) conflictError(ctx context.Context, tx *sql.Tx, id string, expected int64) error {
	var actual int64
	err := tx.QueryRowContext(ctx, `SELECT version FROM records WHERE id = ?`, id).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("read record version: %w", err)
	}
	return fmt.Errorf("%w: record %s is at version %d, expected %d", ErrVersionConflict, id, actual, expected)
}

// DeleteRecord removes a record; its diff log is removed by cascade.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}
