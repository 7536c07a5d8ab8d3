package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"records", "diffs"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "0"))
}

func TestRunMigrations_UpgradesOldDatabase(t *testing.T) {
	s := createTestStore(t)

	saved := migrations
	t.Cleanup(func() { migrations = saved })
	var applied []int
	migrations = []func(*sql.Tx) error{
		func(tx *sql.Tx) error {
			applied = append(applied, 1)
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_diffs_user ON diffs(username)`)
			return err
		},
		func(tx *sql.Tx) error {
			applied = append(applied, 2)
			return nil
		},
	}

	require.NoError(t, runMigrations(s.db))
	assert.Equal(t, []int{1, 2}, applied)
	assert.NoError(t, s.verifyPragma("user_version", "2"))

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_diffs_user'",
	).Scan(&name)
	require.NoError(t, err)

	// Already current: nothing runs again.
	require.NoError(t, runMigrations(s.db))
	assert.Equal(t, []int{1, 2}, applied)
}

func TestRunMigrations_FailedStepRollsBack(t *testing.T) {
	s := createTestStore(t)

	saved := migrations
	t.Cleanup(func() { migrations = saved })
	migrations = []func(*sql.Tx) error{
		func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE INDEX idx_diffs_reason ON diffs(reason)`); err != nil {
				return err
			}
			return errors.New("boom")
		},
	}

	err := runMigrations(s.db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate to v1")
	assert.NoError(t, s.verifyPragma("user_version", "0"))

	var n int
	require.NoError(t, s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_diffs_reason'",
	).Scan(&n))
	assert.Zero(t, n)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}
