package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/credstore/internal/apperror"
	"github.com/sakif/credstore/internal/config"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Backend = backend
	cfg.DataPath = filepath.Join(t.TempDir(), "data", "store")
	cfg.BcryptCost = 4
	cfg.SaveDelay = time.Hour
	return cfg
}

// runCmd runs one CLI invocation with stdin as the piped password.
func runCmd(t *testing.T, cfg *config.Config, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := run(context.Background(), cfg, logger, args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_Usage(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)

	_, stderr, err := runCmd(t, cfg, "")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "usage: credstore")

	_, stderr, err = runCmd(t, cfg, "", "delete", "a@x.com")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, `unknown command "delete"`)
}

func TestRun_Lifecycle(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)

			// Seeded accounts exist on first use.
			out, _, err := runCmd(t, cfg, "J0hn5M1th\n", "login", "johnsmith@outlook.com")
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(out, "\tjohnsmith@outlook.com\n"), out)

			out, _, err = runCmd(t, cfg, "password123\n", "signup", "new@x.com")
			require.NoError(t, err)
			id, email, ok := strings.Cut(strings.TrimSpace(out), "\t")
			require.True(t, ok, out)
			assert.Equal(t, "new@x.com", email)

			// Each run is a fresh process-like instance: the signup above
			// must have been flushed on exit despite the hour-long delay.
			out, _, err = runCmd(t, cfg, "", "user", id)
			require.NoError(t, err)
			assert.Equal(t, id+"\tnew@x.com\n", out)

			out, _, err = runCmd(t, cfg, "", "lookup", "new@x.com")
			require.NoError(t, err)
			assert.Equal(t, id+"\tnew@x.com\n", out)

			_, _, err = runCmd(t, cfg, "wrongpassword", "login", "new@x.com")
			require.Error(t, err)
			assert.Equal(t, "Invalid email or password", userMessage(err))

			_, _, err = runCmd(t, cfg, "password123\n", "signup", "new@x.com")
			require.Error(t, err)
			assert.Equal(t, "A user already exists with this email", userMessage(err))
		})
	}
}

func TestRun_LookupMissing(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)

	_, _, err := runCmd(t, cfg, "", "lookup", "ghost@x.com")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.True(t, strings.HasPrefix(userMessage(err), "error: "))
}

func TestReadPassword(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"secret\n", "secret"},
		{"secret\r\n", "secret"},
		{"no newline", "no newline"},
		{"first\nsecond\n", "first"},
		{"", ""},
	}

	for _, tt := range tests {
		got, err := readPassword(strings.NewReader(tt.in), io.Discard)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Email is invalid",
		userMessage(apperror.ValidationFailed("email", "Email is invalid")))
	assert.Equal(t, "error: disk on fire", userMessage(errors.New("disk on fire")))
}
