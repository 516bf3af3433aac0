package repository

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/credstore/internal/model"
)

// SeedEntry is one built-in account created when no snapshot exists.
type SeedEntry struct {
	Email    string
	Password string
}

// DefaultSeed is the content written on first start.
var DefaultSeed = []SeedEntry{
	{Email: "johnsmith@outlook.com", Password: "J0hn5M1th"},
	{Email: "kody@gmail.com", Password: "twixrox"},
}

// buildSeed hashes every seed password in parallel and returns the records
// that hashed successfully, in seed order. A failed hash drops that record
// only; it is logged and the rest of the seed proceeds.
func buildSeed(ctx context.Context, hasher Hasher, seed []SeedEntry, logger *slog.Logger) model.Data {
	hashes := make([]string, len(seed))
	ok := make([]bool, len(seed))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, entry := range seed {
		g.Go(func() error {
			hash, err := hasher.Hash(gctx, entry.Password)
			if err != nil {
				logger.Warn("dropping seed user",
					slog.String("email", entry.Email),
					slog.Any("error", err),
				)
				return nil
			}
			hashes[i], ok[i] = hash, true
			return nil
		})
	}
	_ = g.Wait() // workers never return an error

	data := model.Data{
		Users:     make([]model.User, 0, len(seed)),
		Passwords: make([]model.Password, 0, len(seed)),
	}
	seen := make(map[string]bool, len(seed))
	for i, entry := range seed {
		if !ok[i] || seen[entry.Email] {
			continue
		}
		seen[entry.Email] = true

		id := xid.New().String()
		data.Users = append(data.Users, model.User{ID: id, Email: entry.Email})
		data.Passwords = append(data.Passwords, model.Password{UserID: id, Hash: hashes[i]})
	}

	return data
}
