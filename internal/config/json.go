package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Duration is a time.Duration that decodes from a Go duration string
// ("750ms") or a number of nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}

	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	*d = Duration(n)
	return nil
}

// JSONConfig is the on-disk shape of a config file. Pointer fields tell
// "absent" apart from a zero value; only present fields override.
type JSONConfig struct {
	Backend      *string     `json:"backend"`
	DataPath     *string     `json:"data_path"`
	BcryptCost   *int        `json:"bcrypt_cost"`
	SaveDelay    *Duration   `json:"save_delay"`
	ReadyTimeout *Duration   `json:"ready_timeout"`
	LogLevel     *slog.Level `json:"log_level"`
}

// parseJSONFile overlays the settings found in the file at path onto cfg.
// Unknown keys are rejected so a typo does not silently fall back to a
// default.
func parseJSONFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	var c JSONConfig
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return fmt.Errorf("config: decoding %s: %w", path, err)
	}

	if c.Backend != nil {
		cfg.Backend = *c.Backend
	}
	if c.DataPath != nil {
		cfg.DataPath = *c.DataPath
	}
	if c.BcryptCost != nil {
		cfg.BcryptCost = *c.BcryptCost
	}
	if c.SaveDelay != nil {
		cfg.SaveDelay = time.Duration(*c.SaveDelay)
	}
	if c.ReadyTimeout != nil {
		cfg.ReadyTimeout = time.Duration(*c.ReadyTimeout)
	}
	if c.LogLevel != nil {
		cfg.LogLevel = *c.LogLevel
	}
	return nil
}
