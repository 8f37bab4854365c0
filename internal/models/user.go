package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the full persisted account record. The password hash is a
// self-describing PHC string; TOTPSecret is empty until MFA enrollment
// completes. Token is the account's opaque bearer.
type User struct {
	ID           uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	TOTPSecret   string
	Token        string
	Roles        []uuid.UUID
	Disabled     bool
	CreatedAt    time.Time
}

// UserDTO is the wire shape. It never carries the hash, the TOTP
// secret or the bearer token.
type UserDTO struct {
	ID         uuid.UUID   `json:"id"`
	Email      string      `json:"email"`
	FirstName  string      `json:"firstName"`
	LastName   string      `json:"lastName"`
	Roles      []uuid.UUID `json:"roles"`
	Disabled   bool        `json:"disabled"`
	MfaEnabled bool        `json:"mfaEnabled"`
	CreatedAt  time.Time   `json:"createdAt"`
}

func (u *User) DTO() UserDTO {
	roles := u.Roles
	if roles == nil {
		roles = []uuid.UUID{}
	}
	return UserDTO{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Roles:      roles,
		Disabled:   u.Disabled,
		MfaEnabled: u.TOTPSecret != "",
		CreatedAt:  u.CreatedAt,
	}
}

// IsSystem reports whether this is the sentinel system user.
func (u *User) IsSystem() bool {
	return u.ID == SystemUserID
}

// IsAdmin reports admin membership: the system user or any holder of
// the admin role.
func (u *User) IsAdmin() bool {
	if u.IsSystem() {
		return true
	}
	for _, r := range u.Roles {
		if r == AdminRoleID {
			return true
		}
	}
	return false
}

// HasRole reports membership of the given role id.
func (u *User) HasRole(id uuid.UUID) bool {
	for _, r := range u.Roles {
		if r == id {
			return true
		}
	}
	return false
}
