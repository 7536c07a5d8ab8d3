package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "rewind.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want, cfg)
	assert.Equal(t, "id", cfg.IdentityKey)
}

func TestLoadExplicitFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
db:
  path: /var/lib/rewind/history.db
diff:
  identity_key: _id
log:
  level: debug
  format: json
`)

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/rewind/history.db", cfg.DBPath)
	assert.Equal(t, "_id", cfg.IdentityKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen, "unset keys keep defaults")

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "server:\n  listen: :9000\n")
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.NotEmpty(t, cfg.File)
}

func TestLoadSearchesHomeDirectory(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".rewind"), 0o755))
	writeConfig(t, filepath.Join(home, ".rewind"), "db:\n  path: home.db\n")
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "home.db", cfg.DBPath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "db:\n  path: file.db\n")
	t.Setenv("REWIND_DB_PATH", "env.db")
	t.Setenv("REWIND_DIFF_IDENTITY_KEY", "uuid")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.DBPath)
	assert.Equal(t, "uuid", cfg.IdentityKey)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty identity key", "diff:\n  identity_key: \"\"\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"bad format", "log:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(New(), path)
			require.Error(t, err)
		})
	}
}
