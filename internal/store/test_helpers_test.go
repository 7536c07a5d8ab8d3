package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/value"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a record at the creation version.
func createTestRecord(id, collection string, fields value.Object) *history.Record {
	return &history.Record{
		ID:         id,
		Collection: collection,
		Fields:     fields,
		Version:    history.CreationVersion,
		CreatedBy:  history.Attribution{Username: "john", Reason: "seed"},
		CreatedAt:  testEpoch,
		UpdatedAt:  testEpoch,
	}
}

// nextVersion returns rec advanced to fields together with its entry.
func nextVersion(rec *history.Record, fields value.Object, user string) (*history.Record, history.DiffEntry) {
	next := *rec
	next.Fields = fields
	next.Version = rec.Version + 1
	next.UpdatedAt = testEpoch.Add(time.Duration(next.Version) * time.Minute)

	entry := history.DiffEntry{
		EntityID: rec.ID,
		Version:  next.Version,
		Payload:  diff.Diff(rec.Fields, fields),
		User:     user,
		At:       next.UpdatedAt,
		Checksum: value.MustFingerprint(fields),
	}
	return &next, entry
}
