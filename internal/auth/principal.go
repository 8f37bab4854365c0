package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/models"
)

// CredentialStore is the slice of the store the resolver needs. Both
// lookups return (nil, nil) when no record matches.
type CredentialStore interface {
	GetUserByToken(ctx context.Context, token string) (*models.User, error)
	GetOAuthTokenByToken(ctx context.Context, token string) (*models.OAuthToken, error)
}

// Principal is the resolved caller identity: exactly one of User or
// Token is set. Handlers discriminate on the variant and never touch
// the raw header again.
type Principal struct {
	UserID uuid.UUID
	User   *models.User
	Token  *models.OAuthToken
}

// IsUser reports whether the caller authenticated with a user bearer.
func (p *Principal) IsUser() bool { return p.User != nil }

// IsToken reports whether the caller authenticated with an OAuth
// access token.
func (p *Principal) IsToken() bool { return p.Token != nil }

// PrincipalResolver turns an Authorization header into a Principal
// with at most two indexed store lookups.
type PrincipalResolver struct {
	store CredentialStore
}

func NewPrincipalResolver(store CredentialStore) *PrincipalResolver {
	return &PrincipalResolver{store: store}
}

// Resolve parses and resolves the raw Authorization header value. The
// header is "Bearer <token>" with any whitespace as the separator;
// other schemes and extra fields are rejected. User bearers and OAuth
// bearers share one opaque keyspace, so the user-token index is
// consulted first and the OAuth index on miss.
func (r *PrincipalResolver) Resolve(ctx context.Context, header string) (*Principal, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, apperrors.InvalidToken("Invalid token!")
	}
	bearer := parts[1]

	user, err := r.store.GetUserByToken(ctx, bearer)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user != nil {
		if user.Disabled {
			return nil, apperrors.UserDisabled()
		}
		return &Principal{UserID: user.ID, User: user}, nil
	}

	token, err := r.store.GetOAuthTokenByToken(ctx, bearer)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if token != nil {
		if token.Expired(timeNow()) {
			return nil, apperrors.InvalidToken("Token expired!")
		}
		return &Principal{UserID: token.UserID, Token: token}, nil
	}

	return nil, apperrors.InvalidToken("Invalid token!")
}
