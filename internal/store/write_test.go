package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/value"
)

func TestCreateRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestRecord("rec-1", "people", value.Object{"name": value.String("Doe")})
	require.NoError(t, s.CreateRecord(ctx, rec))

	got, err := s.LoadLatest(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestCreateRecord_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestRecord("rec-1", "people", value.Object{})
	require.NoError(t, s.CreateRecord(ctx, rec))
	assert.Error(t, s.CreateRecord(ctx, rec))
}

func TestCreateRecord_RejectsNonZeroVersion(t *testing.T) {
	s := createTestStore(t)
	rec := createTestRecord("rec-1", "people", value.Object{})
	rec.Version = 3
	assert.Error(t, s.CreateRecord(context.Background(), rec))
}

func TestAppendDiff(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestRecord("rec-1", "people", value.Object{"name": value.String("Doe")})
	require.NoError(t, s.CreateRecord(ctx, rec))

	next, entry := nextVersion(rec, value.Object{"name": value.String("Not Doe")}, "jane")
	require.NoError(t, s.AppendDiff(ctx, next, entry))

	got, err := s.LoadLatest(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, value.String("Not Doe"), got.Fields["name"])
	assert.Equal(t, next.UpdatedAt, got.UpdatedAt)

	log, err := s.LoadDiffLog(ctx, "rec-1", 1, history.Ascending)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, entry, log[0])
}

func TestAppendDiff_VersionConflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestRecord("rec-1", "people", value.Object{"n": value.Int(0)})
	require.NoError(t, s.CreateRecord(ctx, rec))

	// Two writers both start from version 0.
	first, firstEntry := nextVersion(rec, value.Object{"n": value.Int(1)}, "a")
	second, secondEntry := nextVersion(rec, value.Object{"n": value.Int(2)}, "b")

	require.NoError(t, s.AppendDiff(ctx, first, firstEntry))
	err := s.AppendDiff(ctx, second, secondEntry)
	require.ErrorIs(t, err, ErrVersionConflict)

	got, err := s.LoadLatest(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), got.Fields["n"], "losing write must not be applied")

	log, err := s.LoadDiffLog(ctx, "rec-1", 1, history.Ascending)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestAppendDiff_RecordNotFound(t *testing.T) {
	s := createTestStore(t)
	rec := createTestRecord("ghost", "people", value.Object{})
	next, entry := nextVersion(rec, value.Object{"a": value.Int(1)}, "a")

	err := s.AppendDiff(context.Background(), next, entry)
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestAppendDiff_MismatchedEntry(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := createTestRecord("rec-1", "people", value.Object{})
	require.NoError(t, s.CreateRecord(ctx, rec))

	next, entry := nextVersion(rec, value.Object{"a": value.Int(1)}, "a")
	entry.EntityID = "other"
	assert.Error(t, s.AppendDiff(ctx, next, entry))

	next, entry = nextVersion(rec, value.Object{"a": value.Int(1)}, "a")
	entry.Version = 7
	assert.Error(t, s.AppendDiff(ctx, next, entry))
}

func TestDiffsAreImmutable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := createTestRecord("rec-1", "people", value.Object{})
	require.NoError(t, s.CreateRecord(ctx, rec))
	next, entry := nextVersion(rec, value.Object{"a": value.Int(1)}, "a")
	require.NoError(t, s.AppendDiff(ctx, next, entry))

	_, err := s.db.Exec(`UPDATE diffs SET username = 'mallory' WHERE entity_id = 'rec-1'`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable")
}

func TestDeleteRecord_CascadesDiffs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := createTestRecord("rec-1", "people", value.Object{})
	require.NoError(t, s.CreateRecord(ctx, rec))
	next, entry := nextVersion(rec, value.Object{"a": value.Int(1)}, "a")
	require.NoError(t, s.AppendDiff(ctx, next, entry))

	require.NoError(t, s.DeleteRecord(ctx, "rec-1"))

	_, err := s.LoadLatest(ctx, "rec-1")
	require.ErrorIs(t, err, ErrRecordNotFound)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM diffs`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestDeleteRecord_NotFound(t *testing.T) {
	s := createTestStore(t)
	err := s.DeleteRecord(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrRecordNotFound)
}
