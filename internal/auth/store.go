package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/models"
)

// Store slices consumed by the auth services. All single-entity
// lookups return (nil, nil) when no record matches; sessions apply
// lazy expiry before reporting absence.

type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
}

type SessionStore interface {
	InsertSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

type PasskeyStore interface {
	GetPasskey(ctx context.Context, id string) (*models.Passkey, error)
	ListPasskeysByUser(ctx context.Context, userID uuid.UUID) ([]models.Passkey, error)
	CreatePasskey(ctx context.Context, passkey *models.Passkey) error
	UpdatePasskey(ctx context.Context, passkey *models.Passkey) error
}

type RegistrationTokenStore interface {
	GetRegistrationTokenByCode(ctx context.Context, code string) (*models.RegistrationToken, error)
	AddRegistrationTokenUse(ctx context.Context, id, userID uuid.UUID) error
}
