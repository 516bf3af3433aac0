package config

import (
	"fmt"
	"strconv"
	"time"
)

// parseEnv overlays CREDSTORE_* variables onto cfg. Empty variables are
// ignored. Durations use Go duration syntax.
func parseEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvBackend); v != "" {
		cfg.Backend = v
	}
	if v := getenv(EnvDataPath); v != "" {
		cfg.DataPath = v
	}

	if v := getenv(EnvBcryptCost); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvBcryptCost, v, err)
		}
		cfg.BcryptCost = n
	}

	if v := getenv(EnvSaveDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvSaveDelay, v, err)
		}
		cfg.SaveDelay = d
	}

	if v := getenv(EnvReadyTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvReadyTimeout, v, err)
		}
		cfg.ReadyTimeout = d
	}

	if v := getenv(EnvLogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvLogLevel, v, err)
		}
	}

	return nil
}
