package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veldtec/authgate/internal/models"
)

// timeNow is swapped in tests to pin expiry decisions.
var timeNow = time.Now

func (s *Store) InsertSession(ctx context.Context, session models.Session) error {
	payload, err := json.Marshal(session.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode session payload: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO main.sessions (id, payload, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`,
		session.ID, payload, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession applies lazy expiry: a record past its deadline is
// deleted on read and reported as absent.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var (
		session models.Session
		payload []byte
	)
	row := s.pool.QueryRow(ctx, "SELECT id, payload, expires_at FROM main.sessions WHERE id = $1", id)
	if err := row.Scan(&session.ID, &payload, &session.ExpiresAt); err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if session.Expired(timeNow()) {
		if err := s.DeleteSession(ctx, id); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := json.Unmarshal(payload, &session.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode session payload: %w", err)
	}
	return &session, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM main.sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
