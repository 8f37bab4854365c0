package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtec/authgate/internal/auth"
	"github.com/veldtec/authgate/internal/models"
)

type stubCredentialStore struct {
	user *models.User
}

func (s *stubCredentialStore) GetUserByToken(_ context.Context, token string) (*models.User, error) {
	if s.user != nil && s.user.Token == token {
		return s.user, nil
	}
	return nil, nil
}

func (s *stubCredentialStore) GetOAuthTokenByToken(_ context.Context, _ string) (*models.OAuthToken, error) {
	return nil, nil
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	handler := RequireAuth(auth.NewPrincipalResolver(&stubCredentialStore{}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a header")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/@me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Authorization header required!", body["message"])
}

func TestRequireAuth_InvalidBearer(t *testing.T) {
	handler := RequireAuth(auth.NewPrincipalResolver(&stubCredentialStore{}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with a bad bearer")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/@me", nil)
	req.Header.Set("Authorization", "Bearer nobody")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_InjectsPrincipal(t *testing.T) {
	user := &models.User{ID: uuid.New(), Token: "valid-bearer"}
	resolver := auth.NewPrincipalResolver(&stubCredentialStore{user: user})

	var seen *auth.Principal
	handler := RequireAuth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = MustGetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/@me", nil)
	req.Header.Set("Authorization", "Bearer valid-bearer")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, user.ID, seen.UserID)
	assert.True(t, seen.IsUser())
}

func TestGetPrincipal(t *testing.T) {
	_, err := GetPrincipal(context.Background())
	assert.Error(t, err)

	principal := &auth.Principal{UserID: uuid.New()}
	ctx := context.WithValue(context.Background(), PrincipalKey, principal)
	got, err := GetPrincipal(ctx)
	require.NoError(t, err)
	assert.Same(t, principal, got)
}
