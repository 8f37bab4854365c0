package models

import (
	"time"

	"github.com/google/uuid"
)

// OAuthApplication is a registered OAuth2 client. Redirect URIs are
// matched by exact string equality at authorize time.
type OAuthApplication struct {
	ID           uuid.UUID
	Name         string
	Description  string
	RedirectURIs []string
	Secret       string
	OwnerID      uuid.UUID
	CreatedAt    time.Time
}

// OAuthApplicationDTO is the wire shape without the client secret.
type OAuthApplicationDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	RedirectURIs []string  `json:"redirectUris"`
	OwnerID      uuid.UUID `json:"ownerId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// OAuthApplicationCreatedDTO is returned once, on create, and is the
// only response that ever carries the secret.
type OAuthApplicationCreatedDTO struct {
	OAuthApplicationDTO
	Secret string `json:"secret"`
}

func (a *OAuthApplication) DTO() OAuthApplicationDTO {
	uris := a.RedirectURIs
	if uris == nil {
		uris = []string{}
	}
	return OAuthApplicationDTO{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		RedirectURIs: uris,
		OwnerID:      a.OwnerID,
		CreatedAt:    a.CreatedAt,
	}
}

// HasRedirectURI reports whether uri exactly matches a registered one.
func (a *OAuthApplication) HasRedirectURI(uri string) bool {
	for _, registered := range a.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}
