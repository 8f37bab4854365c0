package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/models"
)

type fakeCredentialStore struct {
	users  map[string]*models.User
	tokens map[string]*models.OAuthToken
	err    error
}

func (s *fakeCredentialStore) GetUserByToken(_ context.Context, token string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.users[token], nil
}

func (s *fakeCredentialStore) GetOAuthTokenByToken(_ context.Context, token string) (*models.OAuthToken, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tokens[token], nil
}

func TestResolve_HeaderBoundaries(t *testing.T) {
	resolver := NewPrincipalResolver(&fakeCredentialStore{})

	for _, header := range []string{
		"",
		"Bearer",
		"Bearer ",
		"bearer abc",
		"Basic abc",
		"Bearer abc def",
		"Bearerabc",
	} {
		_, err := resolver.Resolve(context.Background(), header)
		require.Error(t, err, "header %q", header)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken), "header %q", header)
	}
}

func TestResolve_UserBearer(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "a@b.co", Token: "user-bearer"}
	resolver := NewPrincipalResolver(&fakeCredentialStore{
		users: map[string]*models.User{"user-bearer": user},
	})

	principal, err := resolver.Resolve(context.Background(), "Bearer user-bearer")
	require.NoError(t, err)
	assert.True(t, principal.IsUser())
	assert.False(t, principal.IsToken())
	assert.Equal(t, user.ID, principal.UserID)
}

func TestResolve_SeparatorIsAnyWhitespace(t *testing.T) {
	user := &models.User{ID: uuid.New(), Token: "user-bearer"}
	resolver := NewPrincipalResolver(&fakeCredentialStore{
		users: map[string]*models.User{"user-bearer": user},
	})

	for _, header := range []string{
		"Bearer\tuser-bearer",
		"Bearer  user-bearer",
		" Bearer user-bearer ",
	} {
		principal, err := resolver.Resolve(context.Background(), header)
		require.NoError(t, err, "header %q", header)
		assert.Equal(t, user.ID, principal.UserID, "header %q", header)
	}
}

func TestResolve_DisabledUser(t *testing.T) {
	user := &models.User{ID: uuid.New(), Token: "user-bearer", Disabled: true}
	resolver := NewPrincipalResolver(&fakeCredentialStore{
		users: map[string]*models.User{"user-bearer": user},
	})

	_, err := resolver.Resolve(context.Background(), "Bearer user-bearer")
	assert.True(t, apperrors.IsKind(err, apperrors.KindUserDisabled))
}

func TestResolve_OAuthBearer(t *testing.T) {
	token := &models.OAuthToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Token:     "oauth-bearer",
		ExpiresIn: models.OAuthTokenTTL,
		CreatedAt: time.Now().UTC(),
	}
	resolver := NewPrincipalResolver(&fakeCredentialStore{
		tokens: map[string]*models.OAuthToken{"oauth-bearer": token},
	})

	principal, err := resolver.Resolve(context.Background(), "Bearer oauth-bearer")
	require.NoError(t, err)
	assert.True(t, principal.IsToken())
	assert.False(t, principal.IsUser())
	assert.Equal(t, token.UserID, principal.UserID)
}

func TestResolve_ExpiredOAuthBearer(t *testing.T) {
	token := &models.OAuthToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Token:     "oauth-bearer",
		ExpiresIn: 60,
		CreatedAt: time.Now().UTC().Add(-2 * time.Minute),
	}
	resolver := NewPrincipalResolver(&fakeCredentialStore{
		tokens: map[string]*models.OAuthToken{"oauth-bearer": token},
	})

	_, err := resolver.Resolve(context.Background(), "Bearer oauth-bearer")
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))
}

func TestResolve_UnknownBearer(t *testing.T) {
	resolver := NewPrincipalResolver(&fakeCredentialStore{})

	_, err := resolver.Resolve(context.Background(), "Bearer nobody")
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))
}

func TestResolve_StoreError(t *testing.T) {
	resolver := NewPrincipalResolver(&fakeCredentialStore{err: errors.New("connection refused")})

	_, err := resolver.Resolve(context.Background(), "Bearer anything")
	assert.True(t, apperrors.IsKind(err, apperrors.KindDatabase))
}
