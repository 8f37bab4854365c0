package models

import (
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Passkey is a stored WebAuthn credential. ID is the URL-safe-no-pad
// base64 of the raw credential id, globally unique; authentication
// looks credentials up by this id.
type Passkey struct {
	ID         string
	UserID     uuid.UUID
	Name       string
	Credential webauthn.Credential
	CreatedAt  time.Time
}

// PasskeyDTO is the wire shape without the credential material.
type PasskeyDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p *Passkey) DTO() PasskeyDTO {
	return PasskeyDTO{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt}
}
