package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/models"
)

type passwordHasher interface {
	Hash(password string) (string, error)
}

type tokenMinter func() (string, error)

// Seed establishes the cold-start invariants: the settings singleton,
// the Admin and Default system roles under their sentinel ids, and,
// when the user table is empty, the system user built from the
// environment-supplied credentials. Every step is idempotent.
func (s *Store) Seed(ctx context.Context, systemEmail, systemPassword string, hasher passwordHasher, mintToken tokenMinter, logger *slog.Logger) error {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return err
	}
	if settings == nil {
		if err := s.UpsertSettings(ctx, models.DefaultSettings()); err != nil {
			return err
		}
		logger.Info("settings_seeded")
	}

	if err := s.ensureRole(ctx, models.AdminRoleID, "Admin", logger); err != nil {
		return err
	}
	if err := s.ensureRole(ctx, models.DefaultRoleID, "Default", logger); err != nil {
		return err
	}

	count, err := s.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if systemEmail == "" || systemPassword == "" {
		return fmt.Errorf("seed: SYSTEM_EMAIL and SYSTEM_PASSWORD are required to create the system user")
	}

	hash, err := hasher.Hash(systemPassword)
	if err != nil {
		return fmt.Errorf("seed: failed to hash system password: %w", err)
	}
	token, err := mintToken()
	if err != nil {
		return fmt.Errorf("seed: failed to mint system token: %w", err)
	}

	system := &models.User{
		ID:           models.SystemUserID,
		Email:        strings.ToLower(systemEmail),
		FirstName:    "System",
		PasswordHash: hash,
		Token:        token,
		Roles:        []uuid.UUID{models.AdminRoleID, models.DefaultRoleID},
		CreatedAt:    timeNow().UTC(),
	}
	if err := s.CreateUser(ctx, system); err != nil {
		return err
	}
	logger.Info("system_user_seeded", "email", system.Email)

	return nil
}

func (s *Store) ensureRole(ctx context.Context, id uuid.UUID, name string, logger *slog.Logger) error {
	role, err := s.GetRoleByID(ctx, id)
	if err != nil {
		return err
	}
	if role != nil {
		return nil
	}
	if err := s.CreateRole(ctx, &models.Role{
		ID:        id,
		Name:      name,
		System:    true,
		CreatedAt: timeNow().UTC(),
	}); err != nil {
		return err
	}
	logger.Info("role_seeded", "name", name)
	return nil
}
