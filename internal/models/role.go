package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a named grant referenced from users by id. System roles are
// seeded at bootstrap and cannot be renamed or deleted.
type Role struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	System    bool      `json:"system"`
	CreatedAt time.Time `json:"createdAt"`
}
