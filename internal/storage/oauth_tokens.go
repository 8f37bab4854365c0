package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/models"
)

const tokenColumns = "id, application_id, user_id, token, scope, expires_in, created_at"

func scanToken(row interface{ Scan(...any) error }) (*models.OAuthToken, error) {
	var t models.OAuthToken
	var scope []string
	err := row.Scan(&t.ID, &t.ApplicationID, &t.UserID, &t.Token, &scope, &t.ExpiresIn, &t.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan oauth token: %w", err)
	}
	parsed, err := models.ParseScopes(scope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored scope: %w", err)
	}
	t.Scope = parsed
	return &t, nil
}

func (s *Store) GetOAuthTokenByToken(ctx context.Context, token string) (*models.OAuthToken, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+tokenColumns+" FROM main.oauth_tokens WHERE token = $1", token)
	return scanToken(row)
}

func (s *Store) GetTokenByUserAndApplication(ctx context.Context, userID, applicationID uuid.UUID) (*models.OAuthToken, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+tokenColumns+" FROM main.oauth_tokens WHERE user_id = $1 AND application_id = $2",
		userID, applicationID,
	)
	return scanToken(row)
}

func (s *Store) ListTokensByUser(ctx context.Context, userID uuid.UUID) ([]models.OAuthToken, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+tokenColumns+" FROM main.oauth_tokens WHERE user_id = $1 ORDER BY created_at", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list oauth tokens: %w", err)
	}
	defer rows.Close()

	var tokens []models.OAuthToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

func (s *Store) CreateToken(ctx context.Context, token *models.OAuthToken) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO main.oauth_tokens (id, application_id, user_id, token, scope, expires_in, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		token.ID, token.ApplicationID, token.UserID, token.Token, token.Scope.Strings(), token.ExpiresIn, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create oauth token: %w", err)
	}
	return nil
}

func (s *Store) UpdateToken(ctx context.Context, token *models.OAuthToken) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE main.oauth_tokens SET scope = $2, expires_in = $3, created_at = $4 WHERE id = $1",
		token.ID, token.Scope.Strings(), token.ExpiresIn, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update oauth token: %w", err)
	}
	return nil
}

func (s *Store) DeleteToken(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM main.oauth_tokens WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete oauth token: %w", err)
	}
	return nil
}

// DeleteTokensByUserAndApplication removes every token the user holds
// for the application and reports how many were removed.
func (s *Store) DeleteTokensByUserAndApplication(ctx context.Context, userID, applicationID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM main.oauth_tokens WHERE user_id = $1 AND application_id = $2",
		userID, applicationID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete oauth tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
