// Package sqlite keeps the credential snapshot in a SQLite database.
//
// The repository still works on a whole model.Data at a time, so this is not
// a row-level store: Save rewrites both tables in one transaction and Load
// reads them back in insertion order. What SQLite adds over the JSON file is
// a crash-safe journal and a file other tools can query.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary needs
// no C toolchain.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sakif/credstore/internal/apperror"
	"github.com/sakif/credstore/internal/model"
	"github.com/sakif/credstore/internal/repository"
)

// compile-time check that *Store implements repository.SnapshotStore
var _ repository.SnapshotStore = (*Store)(nil)

// Store wraps a sql.DB connection pool.
type Store struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/credstore.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database, lost on Close
//
// The pool is capped at one connection. Every connection to ":memory:" is a
// different database, and a file database only ever has one writer anyway.
func New(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// migrate creates the tables if they are missing.
//
// position keeps slice order across a round trip. snapshot_meta holds at
// most one row and exists only once a snapshot has been saved, which is how
// an empty snapshot is told apart from no snapshot.
func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id       TEXT PRIMARY KEY,
			email    TEXT NOT NULL,
			position INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS passwords (
			user_id  TEXT NOT NULL,
			hash     TEXT NOT NULL,
			position INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS snapshot_meta (
			id       INTEGER PRIMARY KEY CHECK (id = 1),
			saved_at DATETIME NOT NULL,
			users    INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating snapshot tables: %w", err)
	}
	return nil
}

// Load reads the whole snapshot. It returns apperror.ErrSnapshotNotFound if
// Save has never completed against this database.
func (s *Store) Load(ctx context.Context) (model.Data, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return model.Data{}, fmt.Errorf("sqlite: beginning load: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `SELECT users FROM snapshot_meta WHERE id = 1`).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Data{}, apperror.ErrSnapshotNotFound
	}
	if err != nil {
		return model.Data{}, fmt.Errorf("sqlite: reading snapshot_meta: %w", err)
	}

	data := model.Data{
		Users:     make([]model.User, 0, count),
		Passwords: make([]model.Password, 0, count),
	}

	users, err := tx.QueryContext(ctx, `SELECT id, email FROM users ORDER BY position`)
	if err != nil {
		return model.Data{}, fmt.Errorf("sqlite: querying users: %w", err)
	}
	defer users.Close()
	for users.Next() {
		var u model.User
		if err := users.Scan(&u.ID, &u.Email); err != nil {
			return model.Data{}, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		data.Users = append(data.Users, u)
	}
	if err := users.Err(); err != nil {
		return model.Data{}, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	passwords, err := tx.QueryContext(ctx, `SELECT user_id, hash FROM passwords ORDER BY position`)
	if err != nil {
		return model.Data{}, fmt.Errorf("sqlite: querying passwords: %w", err)
	}
	defer passwords.Close()
	for passwords.Next() {
		var p model.Password
		if err := passwords.Scan(&p.UserID, &p.Hash); err != nil {
			return model.Data{}, fmt.Errorf("sqlite: scanning password: %w", err)
		}
		data.Passwords = append(data.Passwords, p)
	}
	if err := passwords.Err(); err != nil {
		return model.Data{}, fmt.Errorf("sqlite: iterating passwords: %w", err)
	}

	return data, nil
}

// Save replaces the stored snapshot with data in a single transaction.
// A failed Save leaves the previous snapshot intact.
func (s *Store) Save(ctx context.Context, data model.Data) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("sqlite: clearing users: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM passwords`); err != nil {
		return fmt.Errorf("sqlite: clearing passwords: %w", err)
	}

	insertUser, err := tx.PrepareContext(ctx, `INSERT INTO users (id, email, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing user insert: %w", err)
	}
	defer insertUser.Close()
	for i, u := range data.Users {
		if _, err := insertUser.ExecContext(ctx, u.ID, u.Email, i); err != nil {
			return fmt.Errorf("sqlite: inserting user %s: %w", u.ID, err)
		}
	}

	insertPassword, err := tx.PrepareContext(ctx, `INSERT INTO passwords (user_id, hash, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing password insert: %w", err)
	}
	defer insertPassword.Close()
	for i, p := range data.Passwords {
		if _, err := insertPassword.ExecContext(ctx, p.UserID, p.Hash, i); err != nil {
			return fmt.Errorf("sqlite: inserting password for %s: %w", p.UserID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshot_meta (id, saved_at, users) VALUES (1, ?, ?)`,
		time.Now().UTC(), len(data.Users),
	)
	if err != nil {
		return fmt.Errorf("sqlite: writing snapshot_meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing save: %w", err)
	}
	return nil
}
