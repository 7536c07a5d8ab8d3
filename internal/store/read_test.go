package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/value"
)

func seedHistory(t *testing.T, s *Store, id string, names ...string) {
	t.Helper()
	ctx := context.Background()

	rec := createTestRecord(id, "people", value.Object{"name": value.String(names[0])})
	require.NoError(t, s.CreateRecord(ctx, rec))
	for _, n := range names[1:] {
		next, entry := nextVersion(rec, value.Object{"name": value.String(n)}, "user-"+n)
		require.NoError(t, s.AppendDiff(ctx, next, entry))
		rec = next
	}
}

func versions(entries []history.DiffEntry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Version
	}
	return out
}

func TestLoadDiffLog_Order(t *testing.T) {
	s := createTestStore(t)
	seedHistory(t, s, "rec-1", "a", "b", "c", "d")
	ctx := context.Background()

	asc, err := s.LoadDiffLog(ctx, "rec-1", 1, history.Ascending)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, versions(asc))

	desc, err := s.LoadDiffLog(ctx, "rec-1", 1, history.Descending)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, versions(desc))
}

func TestLoadDiffLog_MinVersion(t *testing.T) {
	s := createTestStore(t)
	seedHistory(t, s, "rec-1", "a", "b", "c", "d")

	log, err := s.LoadDiffLog(context.Background(), "rec-1", 2, history.Descending)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, versions(log))
}

func TestLoadDiffLog_Empty(t *testing.T) {
	s := createTestStore(t)

	log, err := s.LoadDiffLog(context.Background(), "nobody", 1, history.Ascending)
	require.NoError(t, err)
	assert.NotNil(t, log, "must return empty slice, not nil")
	assert.Empty(t, log)
}

func TestLoadDiffLog_IsolatedPerEntity(t *testing.T) {
	s := createTestStore(t)
	seedHistory(t, s, "rec-1", "a", "b")
	seedHistory(t, s, "rec-2", "x", "y", "z")

	log, err := s.LoadDiffLog(context.Background(), "rec-1", 1, history.Ascending)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "rec-1", log[0].EntityID)
	assert.Equal(t, "user-b", log[0].User)
}

func TestLoadDiffLog_PayloadRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	before := value.Object{
		"name":   value.String("<Doe & sons>"),
		"phones": value.Array{value.Object{"id": value.Int(1), "n": value.String("111")}},
	}
	after := value.Object{
		"name":   value.String("Doe"),
		"phones": value.Array{value.Object{"id": value.Int(2), "n": value.String("222")}, value.Object{"id": value.Int(1), "n": value.String("111")}},
		"tags":   value.Array{value.Null{}},
	}
	rec := createTestRecord("rec-1", "people", before)
	require.NoError(t, s.CreateRecord(ctx, rec))
	next, entry := nextVersion(rec, after, "jane")
	require.NoError(t, s.AppendDiff(ctx, next, entry))

	log, err := s.LoadDiffLog(ctx, "rec-1", 1, history.Ascending)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, entry.Payload, log[0].Payload)

	restored, err := diff.Unpatch(after, log[0].Payload)
	require.NoError(t, err)
	assert.True(t, value.Equal(before, restored))
}

func TestListRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"b", "a", "c"} {
		rec := createTestRecord(id, "people", value.Object{})
		rec.CreatedAt = testEpoch.Add(time.Duration(i%2) * time.Hour)
		if id == "c" {
			rec.Collection = "things"
		}
		require.NoError(t, s.CreateRecord(ctx, rec))
	}

	people, err := s.ListRecords(ctx, "people")
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "b", people[0].ID)
	assert.Equal(t, "a", people[1].ID)

	all, err := s.ListRecords(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestListRecords_Empty(t *testing.T) {
	s := createTestStore(t)

	recs, err := s.ListRecords(context.Background(), "people")
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestLoadLatest_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.LoadLatest(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrRecordNotFound)
}
