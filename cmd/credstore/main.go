// Package main is the credstore command: a terminal front end for the
// credential store.
//
//	credstore signup <email>   create an account (password prompted)
//	credstore login <email>    check a password
//	credstore lookup <email>   print the user registered with email
//	credstore user <id>        print the user with id
//
// Settings come from CREDSTORE_* environment variables and an optional JSON
// file; see internal/config. The store is closed before exit so a pending
// snapshot write is never lost.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/sakif/credstore/internal/apperror"
	"github.com/sakif/credstore/internal/auth"
	"github.com/sakif/credstore/internal/config"
	"github.com/sakif/credstore/internal/model"
	"github.com/sakif/credstore/internal/repository"
	"github.com/sakif/credstore/internal/service"
	"github.com/sakif/credstore/internal/snapshot"
	"github.com/sakif/credstore/internal/snapshot/sqlite"
)

const usage = `usage: credstore <command> <arg>

commands:
  signup <email>   create an account
  login <email>    check a password
  lookup <email>   show the user registered with email
  user <id>        show the user with id
`

// errUsage means the command line was malformed; usage has been printed.
var errUsage = errors.New("invalid usage")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, logger, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, userMessage(err))
		os.Exit(1)
	}
}

// run executes one command. It owns the store for the duration of the call
// and closes it on every path.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger,
	args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {

	if len(args) != 2 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	cmd, arg := args[0], strings.TrimSpace(args[1])

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	hasher, err := auth.NewPasswordServiceWithCost(cfg.BcryptCost)
	if err != nil {
		return err
	}

	repo := repository.New(hasher, store, repository.Options{
		SaveDelay:    cfg.SaveDelay,
		ReadyTimeout: cfg.ReadyTimeout,
		Logger:       logger,
	})
	defer func() {
		// Flush even if ctx was cancelled by a signal.
		if cerr := repo.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()

	svc := service.NewAuthService(repo, logger)

	var user *model.User
	switch cmd {
	case "signup":
		password, perr := readPassword(stdin, stderr)
		if perr != nil {
			return perr
		}
		user, err = svc.SignIn(ctx, service.KindSignUp, arg, password)
	case "login":
		password, perr := readPassword(stdin, stderr)
		if perr != nil {
			return perr
		}
		user, err = svc.SignIn(ctx, service.KindLogin, arg, password)
	case "lookup":
		user, err = svc.UserByEmail(ctx, arg)
	case "user":
		user, err = svc.UserByID(ctx, arg)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return errUsage
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s\t%s\n", user.ID, user.Email)
	return nil
}

// openStore builds the snapshot store for the configured backend and
// returns the function that releases it.
func openStore(cfg *config.Config) (repository.SnapshotStore, func() error, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path()), 0o700); err != nil {
			return nil, nil, fmt.Errorf("creating data directory: %w", err)
		}
		s, err := sqlite.New(cfg.Path())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return snapshot.NewFileStore(cfg.Path()), func() error { return nil }, nil
	}
}

// readPassword prompts without echo when stdin is a terminal, and
// otherwise reads one line, so passwords can be piped in.
func readPassword(stdin io.Reader, prompt io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// userMessage turns err into the line shown to the person at the terminal.
// Form errors show only their message; everything else shows the chain.
func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr) {
		return appErr.Message
	}
	return "error: " + err.Error()
}
