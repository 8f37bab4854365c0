package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/models"
)

const appColumns = "id, name, description, redirect_uris, secret, owner_id, created_at"

func scanApplication(row interface{ Scan(...any) error }) (*models.OAuthApplication, error) {
	var a models.OAuthApplication
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.RedirectURIs, &a.Secret, &a.OwnerID, &a.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan oauth application: %w", err)
	}
	return &a, nil
}

func (s *Store) GetApplicationByID(ctx context.Context, id uuid.UUID) (*models.OAuthApplication, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+appColumns+" FROM main.oauth_applications WHERE id = $1", id)
	return scanApplication(row)
}

func (s *Store) ListApplications(ctx context.Context) ([]models.OAuthApplication, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+appColumns+" FROM main.oauth_applications ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list oauth applications: %w", err)
	}
	defer rows.Close()
	return collectApplications(rows)
}

func (s *Store) ListApplicationsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.OAuthApplication, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+appColumns+" FROM main.oauth_applications WHERE owner_id = $1 ORDER BY created_at", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list oauth applications: %w", err)
	}
	defer rows.Close()
	return collectApplications(rows)
}

func collectApplications(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]models.OAuthApplication, error) {
	var apps []models.OAuthApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

func (s *Store) CreateApplication(ctx context.Context, app *models.OAuthApplication) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO main.oauth_applications (id, name, description, redirect_uris, secret, owner_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		app.ID, app.Name, app.Description, app.RedirectURIs, app.Secret, app.OwnerID, app.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create oauth application: %w", err)
	}
	return nil
}

func (s *Store) UpdateApplication(ctx context.Context, app *models.OAuthApplication) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE main.oauth_applications SET name = $2, description = $3, redirect_uris = $4 WHERE id = $1",
		app.ID, app.Name, app.Description, app.RedirectURIs,
	)
	if err != nil {
		return fmt.Errorf("failed to update oauth application: %w", err)
	}
	return nil
}

// DeleteApplication removes the application and cascades to every
// token issued for it.
func (s *Store) DeleteApplication(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM main.oauth_tokens WHERE application_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete application tokens: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM main.oauth_applications WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete oauth application: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
