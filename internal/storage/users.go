package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/models"
)

const userColumns = "id, email, first_name, last_name, password_hash, totp_secret, token, roles, disabled, created_at"

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.TOTPSecret, &u.Token, &u.Roles, &u.Disabled, &u.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM main.users WHERE id = $1", id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM main.users WHERE email = lower($1)", email)
	return scanUser(row)
}

func (s *Store) GetUserByToken(ctx context.Context, token string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM main.users WHERE token = $1", token)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+userColumns+" FROM main.users ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM main.users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO main.users (id, email, first_name, last_name, password_hash, totp_secret, token, roles, disabled, created_at)
		 VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.TOTPSecret, user.Token, user.Roles, user.Disabled, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE main.users
		 SET email = lower($2), first_name = $3, last_name = $4, password_hash = $5, totp_secret = $6, token = $7, roles = $8, disabled = $9
		 WHERE id = $1`,
		user.ID, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.TOTPSecret, user.Token, user.Roles, user.Disabled,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// DeleteUser removes the user and cascades to owned OAuth
// applications (with their tokens) and to tokens where the user is
// the subject.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM main.oauth_tokens
		 WHERE user_id = $1
		    OR application_id IN (SELECT id FROM main.oauth_applications WHERE owner_id = $1)`, id); err != nil {
		return fmt.Errorf("failed to delete user tokens: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM main.oauth_applications WHERE owner_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete user applications: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM main.passkeys WHERE user_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete user passkeys: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM main.users WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
