// Package apperror defines the error taxonomy of the credential store.
//
// Every error returned across a package boundary either is, or wraps, one
// of the sentinels below. Callers branch with errors.Is:
//
//	user, err := repo.SelectUserByEmail(ctx, email)
//	if errors.Is(err, apperror.ErrNotFound) {
//	    // no such user
//	}
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("Validation Error")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("repository unavailable")
	ErrPersistence = errors.New("persistence error")

	// ErrSnapshotNotFound is returned by snapshot stores when nothing has
	// been saved yet. The repository seeds on it; any other load error is fatal.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with key %s", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with key %s", resource, key),
	}
}

// Unavailable reports that the repository cannot serve requests, either
// because startup never completed or because it has been closed.
func Unavailable(reason string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("repository unavailable: %s", reason),
	}
}

// Persistence wraps a snapshot load/save failure. The cause stays reachable
// through errors.Is / errors.As via the joined chain.
func Persistence(op string, cause error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrPersistence, cause),
		Message: fmt.Sprintf("%s snapshot: %v", op, cause),
	}
}
