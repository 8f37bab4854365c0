package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/models"
)

const regTokenColumns = "id, code, max_uses, uses, expires_in, expires_from, auto_roles, created_at"

func scanRegistrationToken(row interface{ Scan(...any) error }) (*models.RegistrationToken, error) {
	var t models.RegistrationToken
	err := row.Scan(&t.ID, &t.Code, &t.MaxUses, &t.Uses, &t.ExpiresIn, &t.ExpiresFrom, &t.AutoRoles, &t.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan registration token: %w", err)
	}
	return &t, nil
}

func (s *Store) GetRegistrationTokenByID(ctx context.Context, id uuid.UUID) (*models.RegistrationToken, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+regTokenColumns+" FROM main.registration_tokens WHERE id = $1", id)
	return scanRegistrationToken(row)
}

func (s *Store) GetRegistrationTokenByCode(ctx context.Context, code string) (*models.RegistrationToken, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+regTokenColumns+" FROM main.registration_tokens WHERE code = $1", code)
	return scanRegistrationToken(row)
}

func (s *Store) ListRegistrationTokens(ctx context.Context) ([]models.RegistrationToken, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+regTokenColumns+" FROM main.registration_tokens ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list registration tokens: %w", err)
	}
	defer rows.Close()

	var tokens []models.RegistrationToken
	for rows.Next() {
		t, err := scanRegistrationToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

func (s *Store) CreateRegistrationToken(ctx context.Context, token *models.RegistrationToken) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO main.registration_tokens (id, code, max_uses, uses, expires_in, expires_from, auto_roles, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		token.ID, token.Code, token.MaxUses, token.Uses, token.ExpiresIn, token.ExpiresFrom, token.AutoRoles, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create registration token: %w", err)
	}
	return nil
}

func (s *Store) UpdateRegistrationToken(ctx context.Context, token *models.RegistrationToken) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE main.registration_tokens
		 SET max_uses = $2, expires_in = $3, expires_from = $4, auto_roles = $5
		 WHERE id = $1`,
		token.ID, token.MaxUses, token.ExpiresIn, token.ExpiresFrom, token.AutoRoles,
	)
	if err != nil {
		return fmt.Errorf("failed to update registration token: %w", err)
	}
	return nil
}

// AddRegistrationTokenUse appends the user id to the uses list
// idempotently.
func (s *Store) AddRegistrationTokenUse(ctx context.Context, id, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE main.registration_tokens
		 SET uses = array_append(uses, $2)
		 WHERE id = $1 AND NOT ($2 = ANY(uses))`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to record registration token use: %w", err)
	}
	return nil
}

func (s *Store) DeleteRegistrationToken(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM main.registration_tokens WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete registration token: %w", err)
	}
	return nil
}
