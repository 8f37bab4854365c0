package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/models"
)

const roleColumns = "id, name, system, created_at"

func scanRole(row interface{ Scan(...any) error }) (*models.Role, error) {
	var r models.Role
	err := row.Scan(&r.ID, &r.Name, &r.System, &r.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}
	return &r, nil
}

func (s *Store) GetRoleByID(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+roleColumns+" FROM main.roles WHERE id = $1", id)
	return scanRole(row)
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+roleColumns+" FROM main.roles WHERE name = $1", name)
	return scanRole(row)
}

func (s *Store) ListRoles(ctx context.Context) ([]models.Role, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+roleColumns+" FROM main.roles ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *r)
	}
	return roles, rows.Err()
}

func (s *Store) CreateRole(ctx context.Context, role *models.Role) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO main.roles (id, name, system, created_at) VALUES ($1, $2, $3, $4)",
		role.ID, role.Name, role.System, role.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

func (s *Store) UpdateRole(ctx context.Context, role *models.Role) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE main.roles SET name = $2 WHERE id = $1",
		role.ID, role.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return nil
}

// DeleteRole removes the role and strips it from every user's role
// set.
func (s *Store) DeleteRole(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "UPDATE main.users SET roles = array_remove(roles, $1) WHERE $1 = ANY(roles)", id); err != nil {
		return fmt.Errorf("failed to strip role from users: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM main.roles WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
