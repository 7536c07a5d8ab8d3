package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolateConfig keeps a developer's $HOME/.rewind and REWIND_* settings
// out of the test.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"REWIND_DB_PATH", "REWIND_DIFF_IDENTITY_KEY", "REWIND_LOG_LEVEL", "REWIND_LOG_FORMAT"} {
		t.Setenv(key, "")
	}
}

// runCLI executes the CLI and returns stdout, stderr and the exit code.
func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

// testDB returns global flags pointing at a fresh database file.
func testDB(t *testing.T) []string {
	t.Helper()
	isolateConfig(t)
	return []string{"--db", filepath.Join(t.TempDir(), "rewind.db")}
}

// with prepends the global flags to a command line.
func with(global []string, args ...string) []string {
	return append(append([]string{}, global...), args...)
}

// decodeData parses a JSON CLIResponse and returns its data.
func decodeData(t *testing.T, stdout string, dst any) CLIResponse {
	t.Helper()
	var raw struct {
		Status   string          `json:"status"`
		Data     json.RawMessage `json:"data"`
		Error    *CLIError       `json:"error"`
		Warnings []string        `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &raw), "stdout: %s", stdout)
	if dst != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, dst))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error, Warnings: raw.Warnings}
}

// createRecord creates a record through the CLI and returns its ID.
func createRecord(t *testing.T, db []string, user string, args ...string) string {
	t.Helper()
	stdout, stderr, code := runCLI(t, with(db, append([]string{"--format", "json", "create", "--collection", "people", "--user", user}, args...)...)...)
	require.Equal(t, ExitSuccess, code, "stderr: %s", stderr)

	var rec struct {
		ID      string `json:"id"`
		Version int64  `json:"version"`
	}
	decodeData(t, stdout, &rec)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, int64(0), rec.Version)
	return rec.ID
}
