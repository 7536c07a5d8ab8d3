// Package config loads rewind settings from defaults, an optional
// rewind.yaml, and REWIND_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/rewind/internal/diff"
)

// Keys understood in rewind.yaml. Nested keys map to env vars with "_",
// e.g. db.path is REWIND_DB_PATH.
const (
	KeyDBPath      = "db.path"
	KeyIdentityKey = "diff.identity_key"
	KeyListen      = "server.listen"
	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
)

// Config holds resolved settings.
type Config struct {
	DBPath      string
	IdentityKey string
	Listen      string
	LogLevel    string
	LogFormat   string

	// File is the config file that was read, or "" when none was found.
	File string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:      "rewind.db",
		IdentityKey: diff.DefaultIdentityKey,
		Listen:      "127.0.0.1:8080",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// New returns a viper instance with defaults and env bindings applied.
// Callers may bind flags onto it before calling Load.
func New() *viper.Viper {
	def := Default()

	v := viper.New()
	v.SetDefault(KeyDBPath, def.DBPath)
	v.SetDefault(KeyIdentityKey, def.IdentityKey)
	v.SetDefault(KeyListen, def.Listen)
	v.SetDefault(KeyLogLevel, def.LogLevel)
	v.SetDefault(KeyLogFormat, def.LogFormat)

	v.SetEnvPrefix("REWIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile, or searches "." and $HOME/.rewind for
// rewind.yaml when configFile is empty. A missing search-path file is
// not an error; a missing explicit file is.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("rewind")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".rewind"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		DBPath:      v.GetString(KeyDBPath),
		IdentityKey: v.GetString(KeyIdentityKey),
		Listen:      v.GetString(KeyListen),
		LogLevel:    v.GetString(KeyLogLevel),
		LogFormat:   v.GetString(KeyLogFormat),
		File:        v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c Config) Validate() error {
	if c.IdentityKey == "" {
		return fmt.Errorf("config: %s must not be empty", KeyIdentityKey)
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: %s must not be empty", KeyDBPath)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: %s must be text or json, got %q", KeyLogFormat, c.LogFormat)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", KeyLogLevel, c.LogLevel, err)
	}
	return level, nil
}
