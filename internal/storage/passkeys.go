package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/models"
)

const passkeyColumns = "id, user_id, name, credential, created_at"

func scanPasskey(row interface{ Scan(...any) error }) (*models.Passkey, error) {
	var p models.Passkey
	var blob []byte
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &blob, &p.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan passkey: %w", err)
	}
	var cred webauthn.Credential
	if err := json.Unmarshal(blob, &cred); err != nil {
		return nil, fmt.Errorf("failed to decode passkey credential: %w", err)
	}
	p.Credential = cred
	return &p, nil
}

func (s *Store) GetPasskey(ctx context.Context, id string) (*models.Passkey, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+passkeyColumns+" FROM main.passkeys WHERE id = $1", id)
	return scanPasskey(row)
}

func (s *Store) ListPasskeysByUser(ctx context.Context, userID uuid.UUID) ([]models.Passkey, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+passkeyColumns+" FROM main.passkeys WHERE user_id = $1 ORDER BY created_at", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list passkeys: %w", err)
	}
	defer rows.Close()
	return collectPasskeys(rows)
}

func (s *Store) ListAllPasskeys(ctx context.Context) ([]models.Passkey, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+passkeyColumns+" FROM main.passkeys ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list passkeys: %w", err)
	}
	defer rows.Close()
	return collectPasskeys(rows)
}

func collectPasskeys(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]models.Passkey, error) {
	var passkeys []models.Passkey
	for rows.Next() {
		p, err := scanPasskey(rows)
		if err != nil {
			return nil, err
		}
		passkeys = append(passkeys, *p)
	}
	return passkeys, rows.Err()
}

func (s *Store) CreatePasskey(ctx context.Context, passkey *models.Passkey) error {
	blob, err := json.Marshal(passkey.Credential)
	if err != nil {
		return fmt.Errorf("failed to encode passkey credential: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		"INSERT INTO main.passkeys (id, user_id, name, credential, created_at) VALUES ($1, $2, $3, $4, $5)",
		passkey.ID, passkey.UserID, passkey.Name, blob, passkey.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create passkey: %w", err)
	}
	return nil
}

func (s *Store) UpdatePasskey(ctx context.Context, passkey *models.Passkey) error {
	blob, err := json.Marshal(passkey.Credential)
	if err != nil {
		return fmt.Errorf("failed to encode passkey credential: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		"UPDATE main.passkeys SET name = $2, credential = $3 WHERE id = $1",
		passkey.ID, passkey.Name, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to update passkey: %w", err)
	}
	return nil
}

func (s *Store) DeletePasskey(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM main.passkeys WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete passkey: %w", err)
	}
	return nil
}
