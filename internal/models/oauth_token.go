package models

import (
	"time"

	"github.com/google/uuid"
)

// OAuthTokenTTL is the fixed access-token lifetime in seconds.
const OAuthTokenTTL int64 = 30 * 24 * 60 * 60

// OAuthToken is a long-lived access token for one (user, application)
// pair. At most one active token exists per pair; reauthorization
// replaces scope and resets the window instead of minting a sibling.
type OAuthToken struct {
	ID            uuid.UUID
	ApplicationID uuid.UUID
	UserID        uuid.UUID
	Token         string
	Scope         ScopeList
	ExpiresIn     int64
	CreatedAt     time.Time
}

// Expired compares in milliseconds: now_ms > created_ms + ttl*1000.
func (t *OAuthToken) Expired(now time.Time) bool {
	return now.UnixMilli() > t.CreatedAt.UnixMilli()+t.ExpiresIn*1000
}

// CoversScope reports whether the token's scope is a strict superset
// of the requested scope by length count: every requested scope is
// present and the token holds more entries than requested.
func (t *OAuthToken) CoversScope(requested ScopeList) bool {
	if len(t.Scope) <= len(requested) {
		return false
	}
	for _, s := range requested {
		if !t.Scope.Has(s) {
			return false
		}
	}
	return true
}
