// Package repository is the credential store: an in-memory index of users
// and password hashes, loaded from (or seeded into) a snapshot, mutated only
// through a single-writer scheduler, and saved back after a quiet period.
package repository

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sakif/credstore/internal/model"
	"github.com/sakif/credstore/internal/scheduler"
)

// UserRepository is the surface the embedding application uses.
//
// Lookup misses and failed logins return apperror.ErrNotFound; inserting an
// email that already exists returns apperror.ErrConflict; a repository that
// never finished starting (or was closed) returns apperror.ErrUnavailable.
type UserRepository interface {
	InsertUser(ctx context.Context, email, password string) (*model.User, error)
	SelectUserByEmail(ctx context.Context, email string) (*model.User, error)
	SelectUserByID(ctx context.Context, id string) (*model.User, error)
	VerifyLogin(ctx context.Context, email, password string) (*model.User, error)
}

// Hasher is the one-way password primitive. Both calls are slow and are
// always made outside the scheduler.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Compare(ctx context.Context, plaintext, hash string) (bool, error)
}

// SnapshotStore reads and writes the whole data set at once.
//
// Load returns apperror.ErrSnapshotNotFound when nothing was ever saved.
type SnapshotStore interface {
	Load(ctx context.Context) (model.Data, error)
	Save(ctx context.Context, data model.Data) error
}

const (
	// DefaultSaveDelay is the quiet period after the last mutation before
	// the snapshot is written.
	DefaultSaveDelay = 500 * time.Millisecond

	// DefaultReadyTimeout bounds how long a call waits for startup:
	// 100 checks at a 50ms interval.
	DefaultReadyTimeout = 100 * 50 * time.Millisecond
)

// compile-time check that *Repository implements UserRepository
var _ UserRepository = (*Repository)(nil)

// Options tunes a Repository. The zero value uses the defaults above,
// DefaultSeed, and a logger that discards everything.
type Options struct {
	// Seed is written when the snapshot store is empty. nil means
	// DefaultSeed; an empty non-nil slice seeds nothing.
	Seed         []SeedEntry
	SaveDelay    time.Duration
	ReadyTimeout time.Duration
	Logger       *slog.Logger
}

// state is everything the scheduler owns. It is only read or written from
// inside task bodies.
type state struct {
	data  model.Data
	index *Index

	// version counts mutations since load; the save path compares it with
	// Repository.written to decide whether a write is needed.
	version uint64

	// saveTimer is armed while a debounced save is waiting. A timer that
	// has fired but whose save task has not run yet is still non-nil, and
	// Stop on it returns false.
	saveTimer *time.Timer

	closed bool
}

// Repository is the credential store. Create it with New; it loads or
// seeds itself on the first call.
type Repository struct {
	hasher       Hasher
	store        SnapshotStore
	seed         []SeedEntry
	saveDelay    time.Duration
	readyTimeout time.Duration
	logger       *slog.Logger

	sched *scheduler.Scheduler[*state]

	startOnce sync.Once
	started   atomic.Bool
	ready     chan struct{} // closed once startup succeeds
	failed    chan struct{} // closed if startup gives up
	closed    atomic.Bool

	writeMu sync.Mutex
	written uint64 // last version handed to store.Save successfully; guarded by writeMu
}

// New creates a Repository backed by store, hashing with hasher. Nothing is
// loaded until the first call (or Ready).
func New(hasher Hasher, store SnapshotStore, opts Options) *Repository {
	r := &Repository{
		hasher:       hasher,
		store:        store,
		seed:         opts.Seed,
		saveDelay:    opts.SaveDelay,
		readyTimeout: opts.ReadyTimeout,
		logger:       opts.Logger,
		sched:        scheduler.New(&state{}),
		ready:        make(chan struct{}),
		failed:       make(chan struct{}),
	}

	if r.seed == nil {
		r.seed = DefaultSeed
	}
	if r.saveDelay <= 0 {
		r.saveDelay = DefaultSaveDelay
	}
	if r.readyTimeout <= 0 {
		r.readyTimeout = DefaultReadyTimeout
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}

	return r
}
