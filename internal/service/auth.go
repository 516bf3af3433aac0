// Package service holds the sign-in rules that sit on top of the credential
// store.
//
//	CLI (cmd/credstore) → AuthService (form rules) → UserRepository (store)
//
// The repository only knows how to insert, look up and verify. AuthService
// adds what a sign-in form needs: email and password validation, the
// "signup"/"login" dispatch, and turning repository errors into messages
// that are safe to show the person typing.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sakif/credstore/internal/apperror"
	"github.com/sakif/credstore/internal/auth"
	"github.com/sakif/credstore/internal/model"
	"github.com/sakif/credstore/internal/repository"
)

// Sign-in kinds accepted by SignIn.
const (
	KindSignUp = "signup"
	KindLogin  = "login"
)

// MinPasswordLength is counted in characters, not bytes.
const MinPasswordLength = 8

// Messages shown for each way a sign-in can be rejected.
const (
	MsgEmailInvalid     = "Email is invalid"
	MsgEmailExists      = "A user already exists with this email"
	MsgInvalidLogin     = "Invalid email or password"
	MsgPasswordRequired = "Password is required"
	MsgPasswordShort    = "Password is too short"
	MsgPasswordLong     = "Password is too long"
)

// emailPattern is the "valid e-mail address" rule browsers apply to
// <input type="email">.
var emailPattern = regexp.MustCompile(
	"^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$",
)

// ValidEmail reports whether email is a syntactically valid address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// AuthService validates sign-in forms and runs them against the store.
type AuthService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewAuthService creates an AuthService over users.
func NewAuthService(users repository.UserRepository, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		logger: logger,
	}
}

// SignIn validates the form and then signs up or logs in depending on kind.
//
// Field checks run before the kind is looked at, so a form with both a bad
// email and an unknown kind reports the email.
func (s *AuthService) SignIn(ctx context.Context, kind, email, password string) (*model.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	switch kind {
	case KindSignUp:
		return s.signUp(ctx, email, password)
	case KindLogin:
		return s.login(ctx, email, password)
	default:
		return nil, apperror.ValidationFailed("kind", fmt.Sprintf("Unknown kind: %s", kind))
	}
}

// SignUp registers a new account.
//
// An email that is already taken returns a validation error on the email
// field that also matches apperror.ErrConflict.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*model.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	return s.signUp(ctx, email, password)
}

// Login checks email and password. Unknown email and wrong password give
// the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	return s.login(ctx, email, password)
}

func (s *AuthService) signUp(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.InsertUser(ctx, email, password)
	switch {
	case errors.Is(err, apperror.ErrConflict):
		return nil, &apperror.AppError{
			Err:     errors.Join(apperror.ErrValidation, apperror.ErrConflict),
			Message: MsgEmailExists,
			Field:   "email",
		}
	case errors.Is(err, auth.ErrPasswordTooLong):
		return nil, apperror.ValidationFailed("password", MsgPasswordLong)
	case err != nil:
		return nil, fmt.Errorf("service/auth: signing up %s: %w", email, err)
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

func (s *AuthService) login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.VerifyLogin(ctx, email, password)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		s.logger.Info("login rejected", slog.String("email", email))
		return nil, apperror.ValidationFailed("email", MsgInvalidLogin)
	case err != nil:
		return nil, fmt.Errorf("service/auth: logging in %s: %w", email, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return user, nil
}

// UserByID returns the user with the given id.
func (s *AuthService) UserByID(ctx context.Context, id string) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	user, err := s.users.SelectUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// UserByEmail returns the user registered with email.
func (s *AuthService) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	if !ValidEmail(email) {
		return nil, apperror.ValidationFailed("email", MsgEmailInvalid)
	}

	user, err := s.users.SelectUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", email, err)
	}
	return user, nil
}

func validateCredentials(email, password string) error {
	if !ValidEmail(email) {
		return apperror.ValidationFailed("email", MsgEmailInvalid)
	}

	n := utf8.RuneCountInString(password)
	switch {
	case n == 0:
		return apperror.ValidationFailed("password", MsgPasswordRequired)
	case n < MinPasswordLength:
		return apperror.ValidationFailed("password", MsgPasswordShort)
	case len(password) > auth.MaxPasswordBytes:
		return apperror.ValidationFailed("password", MsgPasswordLong)
	}
	return nil
}
