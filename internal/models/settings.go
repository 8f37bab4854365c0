package models

import "github.com/google/uuid"

// Settings is the fixed-id singleton of global toggles. Mutable only
// by the system user.
type Settings struct {
	ID                     uuid.UUID `json:"id"`
	OpenRegistration       bool      `json:"openRegistration"`
	AllowOAuthAppsForUsers bool      `json:"allowOauthAppsForUsers"`
}

// DefaultSettings is what bootstrap inserts when the singleton is
// absent.
func DefaultSettings() Settings {
	return Settings{
		ID:                     SettingsID,
		OpenRegistration:       true,
		AllowOAuthAppsForUsers: true,
	}
}
