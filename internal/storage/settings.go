package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/veldtec/authgate/internal/models"
)

func (s *Store) GetSettings(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	row := s.pool.QueryRow(ctx,
		"SELECT id, open_registration, allow_oauth_apps_for_users FROM main.settings WHERE id = $1",
		models.SettingsID,
	)
	if err := row.Scan(&settings.ID, &settings.OpenRegistration, &settings.AllowOAuthAppsForUsers); err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan settings: %w", err)
	}
	return &settings, nil
}

func (s *Store) UpsertSettings(ctx context.Context, settings models.Settings) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO main.settings (id, open_registration, allow_oauth_apps_for_users) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET open_registration = EXCLUDED.open_registration, allow_oauth_apps_for_users = EXCLUDED.allow_oauth_apps_for_users`,
		settings.ID, settings.OpenRegistration, settings.AllowOAuthAppsForUsers,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}

// SettingsCache is the in-process copy of the settings singleton.
// Readers take the lock only for a copy; writers swap the whole value
// after the store write succeeds. The mutex is never held across I/O.
type SettingsCache struct {
	mu      sync.RWMutex
	current models.Settings
}

func NewSettingsCache(initial models.Settings) *SettingsCache {
	return &SettingsCache{current: initial}
}

func (c *SettingsCache) Get() models.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *SettingsCache) Set(settings models.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = settings
}
