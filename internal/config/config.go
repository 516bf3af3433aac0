// Package config handles configuration for the credstore CLI: defaults,
// an optional JSON file overlay, then environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/credstore/internal/auth"
	"github.com/sakif/credstore/internal/repository"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Default snapshot locations per backend.
const (
	DefaultFilePath   = "data/users.json"
	DefaultSQLitePath = "data/credstore.db"
)

// Environment variables read by Load.
const (
	EnvConfigFile   = "CREDSTORE_CONFIG"
	EnvBackend      = "CREDSTORE_BACKEND"
	EnvDataPath     = "CREDSTORE_DATA_PATH"
	EnvBcryptCost   = "CREDSTORE_BCRYPT_COST"
	EnvSaveDelay    = "CREDSTORE_SAVE_DELAY"
	EnvReadyTimeout = "CREDSTORE_READY_TIMEOUT"
	EnvLogLevel     = "CREDSTORE_LOG_LEVEL"
)

// Config holds runtime settings.
//
// Fields:
//   - Backend: "file" (JSON snapshot) or "sqlite".
//   - DataPath: snapshot location; empty means the backend's default.
//   - BcryptCost: work factor for new password hashes.
//   - SaveDelay: quiet period before a snapshot is written.
//   - ReadyTimeout: how long a call waits for startup.
//   - LogLevel: minimum level written to stderr.
type Config struct {
	Backend      string
	DataPath     string
	BcryptCost   int
	SaveDelay    time.Duration
	ReadyTimeout time.Duration
	LogLevel     slog.Level
}

// LoadDefaults populates Config with the built-in defaults.
func (c *Config) LoadDefaults() {
	c.Backend = BackendFile
	c.DataPath = ""
	c.BcryptCost = auth.DefaultCost
	c.SaveDelay = repository.DefaultSaveDelay
	c.ReadyTimeout = repository.DefaultReadyTimeout
	c.LogLevel = slog.LevelInfo
}

// Path is the snapshot location for the configured backend.
func (c *Config) Path() string {
	if c.DataPath != "" {
		return c.DataPath
	}
	if c.Backend == BackendSQLite {
		return DefaultSQLitePath
	}
	return DefaultFilePath
}

// Validate reports the first setting that is out of range.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown backend %q (want %q or %q)", c.Backend, BackendFile, BackendSQLite)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("config: bcrypt cost %d out of range [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.SaveDelay < 0 {
		return errors.New("config: save delay must not be negative")
	}
	if c.ReadyTimeout <= 0 {
		return errors.New("config: ready timeout must be positive")
	}
	return nil
}

// Load builds a Config from the process environment: defaults, then the
// JSON file named by CREDSTORE_CONFIG (if set), then the remaining
// CREDSTORE_* variables. The result is validated.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := getenv(EnvConfigFile); path != "" {
		if err := parseJSONFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
