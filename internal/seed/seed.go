// Package seed creates the default data a fresh installation needs
package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/config"
	"github.com/yigit/libris/internal/pkg/auth"
)

// CreateDefaultData creates the configured streams and the bootstrap admin account.
// Existing rows are left untouched, so it is safe to run on every start.
func CreateDefaultData(ctx context.Context, store repositories.Store, cfg *config.Config, lgr zerolog.Logger) error {
	lgr.Info().Msg("Checking/Creating default data (streams, admin)...")
	var finalErr error

	if err := createStreams(ctx, store, cfg.Seed.Streams, lgr); err != nil {
		finalErr = errors.Join(finalErr, err)
	}
	if cfg.Admin.Username != "" {
		if err := createAdmin(ctx, store, cfg, lgr); err != nil {
			lgr.Error().Err(err).Str("username", cfg.Admin.Username).Msg("Error creating admin account")
			finalErr = errors.Join(finalErr, err)
		}
	}
	return finalErr
}

func createStreams(ctx context.Context, store repositories.Store, names []string, lgr zerolog.Logger) error {
	var finalErr error
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		err := store.Repos().Streams.Create(ctx, &models.Stream{Name: name})
		switch {
		case err == nil:
			lgr.Info().Str("stream", name).Msg("Default stream created")
		case errors.Is(err, repositories.ErrAlreadyExists):
		default:
			lgr.Error().Err(err).Str("stream", name).Msg("Error creating stream")
			finalErr = errors.Join(finalErr, err)
		}
	}
	return finalErr
}

func createAdmin(ctx context.Context, store repositories.Store, cfg *config.Config, lgr zerolog.Logger) error {
	exists, err := store.Repos().Users.UsernameExists(ctx, cfg.Admin.Username)
	if err != nil {
		return err
	}
	if exists {
		lgr.Debug().Str("username", cfg.Admin.Username).Msg("Admin account already exists")
		return nil
	}

	hash, err := auth.HashPassword(cfg.Admin.Password)
	if err != nil {
		return err
	}

	admin := &models.User{
		Username:     cfg.Admin.Username,
		Email:        cfg.Admin.Email,
		PasswordHash: hash,
		IsStaff:      true,
		IsSuperuser:  true,
		IsActive:     true,
	}
	if err := store.Repos().Users.Create(ctx, admin); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return nil
		}
		return err
	}

	lgr.Info().Int64("userID", admin.ID).Str("username", admin.Username).Msg("Admin account created")
	return nil
}
