package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationToken is an invite code gating registration. ExpiresIn
// is seconds measured from ExpiresFrom; both are optional and a token
// without them never expires.
type RegistrationToken struct {
	ID          uuid.UUID
	Code        string
	MaxUses     int
	Uses        []uuid.UUID
	ExpiresIn   *int64
	ExpiresFrom *time.Time
	AutoRoles   []uuid.UUID
	CreatedAt   time.Time
}

// RegistrationTokenDTO is the wire shape.
type RegistrationTokenDTO struct {
	ID          uuid.UUID   `json:"id"`
	Code        string      `json:"code"`
	MaxUses     int         `json:"maxUses"`
	Uses        []uuid.UUID `json:"uses"`
	ExpiresIn   *int64      `json:"expiresIn,omitempty"`
	ExpiresFrom *time.Time  `json:"expiresFrom,omitempty"`
	AutoRoles   []uuid.UUID `json:"autoRoles"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func (t *RegistrationToken) DTO() RegistrationTokenDTO {
	uses := t.Uses
	if uses == nil {
		uses = []uuid.UUID{}
	}
	autoRoles := t.AutoRoles
	if autoRoles == nil {
		autoRoles = []uuid.UUID{}
	}
	return RegistrationTokenDTO{
		ID:          t.ID,
		Code:        t.Code,
		MaxUses:     t.MaxUses,
		Uses:        uses,
		ExpiresIn:   t.ExpiresIn,
		ExpiresFrom: t.ExpiresFrom,
		AutoRoles:   autoRoles,
		CreatedAt:   t.CreatedAt,
	}
}

// Exhausted reports whether the token has reached its use limit.
func (t *RegistrationToken) Exhausted() bool {
	return len(t.Uses) >= t.MaxUses
}

// Expired compares in milliseconds against ExpiresFrom + ExpiresIn.
func (t *RegistrationToken) Expired(now time.Time) bool {
	if t.ExpiresIn == nil || t.ExpiresFrom == nil {
		return false
	}
	return now.UnixMilli() > t.ExpiresFrom.UnixMilli()+*t.ExpiresIn*1000
}

// UsedBy reports whether the user already redeemed this token.
func (t *RegistrationToken) UsedBy(userID uuid.UUID) bool {
	for _, id := range t.Uses {
		if id == userID {
			return true
		}
	}
	return false
}
