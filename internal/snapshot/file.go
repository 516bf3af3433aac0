// Package snapshot persists model.Data as a whole.
//
// A snapshot is read once at startup and rewritten wholesale after every
// quiet period, so stores here never deal in single records. FileStore keeps
// it as one indented JSON document; the sqlite subpackage keeps it in tables.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"

	"github.com/sakif/credstore/internal/apperror"
	"github.com/sakif/credstore/internal/model"
	"github.com/sakif/credstore/internal/repository"
)

// compile-time check that *FileStore implements repository.SnapshotStore
var _ repository.SnapshotStore = (*FileStore)(nil)

// FilePerm is the mode of a newly written snapshot file. It holds password
// hashes, so only the owner may read it.
const FilePerm fs.FileMode = 0o600

// FileStore reads and writes a JSON snapshot at a fixed path.
type FileStore struct {
	path string
}

// NewFileStore returns a store for path. Nothing touches the disk until the
// first Load or Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path is the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and decodes the whole snapshot.
//
// A missing file, or one with nothing but whitespace in it, returns
// apperror.ErrSnapshotNotFound. Anything else that fails to read or decode
// is a real error: the caller must not mistake a corrupt snapshot for an
// empty one.
func (s *FileStore) Load(ctx context.Context) (model.Data, error) {
	if err := ctx.Err(); err != nil {
		return model.Data{}, err
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Data{}, apperror.ErrSnapshotNotFound
	}
	if err != nil {
		return model.Data{}, fmt.Errorf("snapshot: reading %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return model.Data{}, apperror.ErrSnapshotNotFound
	}

	var data model.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return model.Data{}, fmt.Errorf("snapshot: decoding %s: %w", s.path, err)
	}
	if data.Users == nil {
		data.Users = []model.User{}
	}
	if data.Passwords == nil {
		data.Passwords = []model.Password{}
	}
	return data, nil
}

// Save encodes data and atomically replaces the snapshot file. Readers see
// either the previous snapshot or the new one, never a partial write.
func (s *FileStore) Save(ctx context.Context, data model.Data) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if data.Users == nil {
		data.Users = []model.User{}
	}
	if data.Passwords == nil {
		data.Passwords = []model.Password{}
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: encoding: %w", err)
	}
	raw = append(raw, '\n')

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("snapshot: creating %s: %w", dir, err)
		}
	}

	if err := atomicwriter.WriteFile(s.path, raw, FilePerm); err != nil {
		return fmt.Errorf("snapshot: writing %s: %w", s.path, err)
	}
	return nil
}
