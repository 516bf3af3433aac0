package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/credstore/internal/apperror"
	"github.com/sakif/credstore/internal/model"
)

func sampleData() model.Data {
	return model.Data{
		Users: []model.User{
			{ID: "u1", Email: "a@x.com"},
			{ID: "u2", Email: "b@x.com"},
		},
		Passwords: []model.Password{
			{UserID: "u1", Hash: "$2a$10$one"},
			{UserID: "u2", Hash: "$2a$10$two"},
		},
	}
}

func TestFileStore_MissingFileIsNotFound(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "users.json"))

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, apperror.ErrSnapshotNotFound)
}

func TestFileStore_EmptyFileIsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	assert.ErrorIs(t, err, apperror.ErrSnapshotNotFound)
}

func TestFileStore_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users": [`), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrSnapshotNotFound)
	assert.Contains(t, err.Error(), "snapshot: decoding")
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "users.json")
	s := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleData()))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleData(), got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, FilePerm, info.Mode().Perm())
}

func TestFileStore_WireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	s := NewFileStore(path)

	require.NoError(t, s.Save(context.Background(), model.Data{
		Users:     []model.User{{ID: "u1", Email: "a@x.com"}},
		Passwords: []model.Password{{UserID: "u1", Hash: "h"}},
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"users": [{"id": "u1", "email": "a@x.com"}],
		"passwords": [{"userId": "u1", "hash": "h"}]
	}`, string(raw))
}

func TestFileStore_SaveReplacesPreviousSnapshot(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "users.json"))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleData()))
	require.NoError(t, s.Save(ctx, model.Data{}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Users)
	assert.Empty(t, got.Passwords)
}

func TestFileStore_HonoursCancelledContext(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "users.json"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Save(ctx, sampleData()), context.Canceled)
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
