package repository

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/credstore/internal/apperror"
	"github.com/sakif/credstore/internal/model"
	"github.com/sakif/credstore/internal/scheduler"
)

// call waits for startup, then runs fn as a scheduler task.
func call[T any](ctx context.Context, r *Repository, fn func(st *state) (T, error)) (T, error) {
	if err := r.waitReady(ctx); err != nil {
		var zero T
		return zero, err
	}

	return scheduler.Submit(r.sched, func(st *state) (T, error) {
		if st.closed {
			var zero T
			return zero, apperror.Unavailable("closed")
		}
		return fn(st)
	}).Wait(ctx)
}

// InsertUser creates a user with the given email and password.
//
// The password is hashed before the task is submitted. The task itself
// only checks the email and appends, so a slow hash never holds up other
// calls. An existing email returns apperror.ErrConflict.
func (r *Repository) InsertUser(ctx context.Context, email, password string) (*model.User, error) {
	if err := r.waitReady(ctx); err != nil {
		return nil, err
	}

	hash, err := r.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("repository: hashing password for %s: %w", email, err)
	}

	return call(ctx, r, func(st *state) (*model.User, error) {
		if _, exists := st.index.ByEmail(email); exists {
			return nil, apperror.Conflict("user", email)
		}

		u := model.User{ID: xid.New().String(), Email: email}
		p := model.Password{UserID: u.ID, Hash: hash}

		st.data.Users = append(st.data.Users, u)
		st.data.Passwords = append(st.data.Passwords, p)
		st.index.Insert(u, p)
		st.version++
		r.scheduleSave(st, r.saveDelay)

		return &u, nil
	})
}

// SelectUserByEmail returns the user registered with email.
func (r *Repository) SelectUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return call(ctx, r, func(st *state) (*model.User, error) {
		e, ok := st.index.ByEmail(email)
		if !ok {
			return nil, apperror.NotFound("user", email)
		}
		u := e.User
		return &u, nil
	})
}

// SelectUserByID returns the user with the given id.
func (r *Repository) SelectUserByID(ctx context.Context, id string) (*model.User, error) {
	return call(ctx, r, func(st *state) (*model.User, error) {
		u, ok := st.index.ByID(id)
		if !ok {
			return nil, apperror.NotFound("user", id)
		}
		return &u, nil
	})
}

// VerifyLogin returns the user if password matches the stored hash for
// email. An unknown email and a wrong password both return
// apperror.ErrNotFound with the same message.
//
// The task only fetches the stored hash; the bcrypt comparison runs
// afterwards on the caller's goroutine. An unknown email returns without
// any comparison, so it answers faster than a wrong password does.
func (r *Repository) VerifyLogin(ctx context.Context, email, password string) (*model.User, error) {
	entry, err := call(ctx, r, func(st *state) (Entry, error) {
		e, ok := st.index.ByEmail(email)
		if !ok {
			return Entry{}, apperror.NotFound("user", email)
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	matched, err := r.hasher.Compare(ctx, password, entry.Password.Hash)
	if err != nil {
		return nil, fmt.Errorf("repository: verifying login for %s: %w", email, err)
	}
	if !matched {
		return nil, apperror.NotFound("user", email)
	}

	u := entry.User
	return &u, nil
}
