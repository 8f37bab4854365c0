package oauth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/audit"
	"github.com/veldtec/authgate/internal/auth"
	"github.com/veldtec/authgate/internal/models"
)

type fakeStore struct {
	apps     map[uuid.UUID]*models.OAuthApplication
	tokens   map[uuid.UUID]*models.OAuthToken
	sessions map[string]models.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		apps:     make(map[uuid.UUID]*models.OAuthApplication),
		tokens:   make(map[uuid.UUID]*models.OAuthToken),
		sessions: make(map[string]models.Session),
	}
}

func (s *fakeStore) GetApplicationByID(_ context.Context, id uuid.UUID) (*models.OAuthApplication, error) {
	return s.apps[id], nil
}

func (s *fakeStore) GetTokenByUserAndApplication(_ context.Context, userID, applicationID uuid.UUID) (*models.OAuthToken, error) {
	for _, t := range s.tokens {
		if t.UserID == userID && t.ApplicationID == applicationID {
			return t, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateToken(_ context.Context, token *models.OAuthToken) error {
	s.tokens[token.ID] = token
	return nil
}

func (s *fakeStore) UpdateToken(_ context.Context, token *models.OAuthToken) error {
	s.tokens[token.ID] = token
	return nil
}

func (s *fakeStore) DeleteToken(_ context.Context, id uuid.UUID) error {
	delete(s.tokens, id)
	return nil
}

func (s *fakeStore) InsertSession(_ context.Context, session models.Session) error {
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *fakeStore) DeleteSession(_ context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func newTestEngine(store *fakeStore) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(store, store, store, &audit.MockLogger{}, logger)
}

func seedApplication(store *fakeStore) *models.OAuthApplication {
	app := &models.OAuthApplication{
		ID:           uuid.New(),
		Name:         "Dashboard",
		RedirectURIs: []string{"https://app.example.com/callback"},
		Secret:       "client-secret",
		OwnerID:      uuid.New(),
		CreatedAt:    time.Now().UTC(),
	}
	store.apps[app.ID] = app
	return app
}

func regularPrincipal() *auth.Principal {
	user := &models.User{ID: uuid.New(), Roles: []uuid.UUID{models.DefaultRoleID}}
	return &auth.Principal{UserID: user.ID, User: user}
}

func mustScopes(t *testing.T, raw ...string) models.ScopeList {
	t.Helper()
	list, err := models.ParseScopes(raw)
	require.NoError(t, err)
	return list
}

func TestAuthorize(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	app := seedApplication(store)
	principal := regularPrincipal()

	result, err := engine.Authorize(context.Background(), principal, app.ID, "https://app.example.com/callback", mustScopes(t, "user:read"))
	require.NoError(t, err)

	assert.Equal(t, app.ID, result.ClientID)
	assert.Len(t, result.Code, 8)

	session := store.sessions[models.SessionPrefixOAuthCode+result.Code]
	require.NotNil(t, session.Payload.OAuthCode)
	assert.Equal(t, principal.UserID, session.Payload.OAuthCode.UserID)
	// The secret is snapshotted so a later secret rotation cannot
	// retroactively validate an old code.
	assert.Equal(t, app.Secret, session.Payload.OAuthCode.ClientSecret)
}

func TestAuthorize_Rejections(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	app := seedApplication(store)
	principal := regularPrincipal()
	scope := mustScopes(t, "user:read")

	systemUser := &models.User{ID: models.SystemUserID}
	system := &auth.Principal{UserID: systemUser.ID, User: systemUser}
	_, err := engine.Authorize(context.Background(), system, app.ID, "https://app.example.com/callback", scope)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = engine.Authorize(context.Background(), principal, app.ID, "https://app.example.com/callback", nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = engine.Authorize(context.Background(), principal, uuid.New(), "https://app.example.com/callback", scope)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	// Exact match only, a trailing slash is a different URI.
	_, err = engine.Authorize(context.Background(), principal, app.ID, "https://app.example.com/callback/", scope)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func authorize(t *testing.T, engine *Engine, store *fakeStore, app *models.OAuthApplication, principal *auth.Principal, scopes ...string) string {
	t.Helper()
	result, err := engine.Authorize(context.Background(), principal, app.ID, "https://app.example.com/callback", mustScopes(t, scopes...))
	require.NoError(t, err)
	return result.Code
}

func exchangeRequest(app *models.OAuthApplication, code string) ExchangeRequest {
	return ExchangeRequest{
		ClientID:     app.ID.String(),
		ClientSecret: app.Secret,
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  "https://app.example.com/callback",
	}
}

func TestExchange_MintsToken(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	app := seedApplication(store)
	principal := regularPrincipal()
	code := authorize(t, engine, store, app, principal, "user:read")

	resp, err := engine.Exchange(context.Background(), exchangeRequest(app, code))
	require.NoError(t, err)

	assert.Len(t, resp.AccessToken, 128)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, models.OAuthTokenTTL, resp.ExpiresIn)
	assert.Equal(t, "user:read", resp.Scope)
	assert.Len(t, store.tokens, 1)
}

func TestExchange_ReplayFails(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	app := seedApplication(store)
	code := authorize(t, engine, store, app, regularPrincipal(), "user:read")

	_, err := engine.Exchange(context.Background(), exchangeRequest(app, code))
	require.NoError(t, err)

	_, err = engine.Exchange(context.Background(), exchangeRequest(app, code))
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))
}

func TestExchange_WrongSecretBurnsCode(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	app := seedApplication(store)
	code := authorize(t, engine, store, app, regularPrincipal(), "user:read")

	bad := exchangeRequest(app, code)
	bad.ClientSecret = "not-the-secret"
	_, err := engine.Exchange(context.Background(), bad)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))

	// The code is consumed even though the attempt was rejected.
	assert.NotContains(t, store.sessions, models.SessionPrefixOAuthCode+code)
	_, err = engine.Exchange(context.Background(), exchangeRequest(app, code))
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))
}

func TestExchange_InvalidRequests(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	app := seedApplication(store)

	req := exchangeRequest(app, "00000000")
	req.ClientID = "not-a-uuid"
	_, err := engine.Exchange(context.Background(), req)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidUUID))

	_, err = engine.Exchange(context.Background(), exchangeRequest(app, "00000000"))
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))

	code := authorize(t, engine, store, app, regularPrincipal(), "user:read")
	mismatch := exchangeRequest(app, code)
	mismatch.RedirectURI = "https://elsewhere.example.com/callback"
	_, err = engine.Exchange(context.Background(), mismatch)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))
}

func TestExchange_ReusesCoveringToken(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	app := seedApplication(store)
	principal := regularPrincipal()

	code := authorize(t, engine, store, app, principal, "user:read", "roles:read")
	first, err := engine.Exchange(context.Background(), exchangeRequest(app, code))
	require.NoError(t, err)

	code = authorize(t, engine, store, app, principal, "user:read")
	second, err := engine.Exchange(context.Background(), exchangeRequest(app, code))
	require.NoError(t, err)

	assert.Equal(t, first.AccessToken, second.AccessToken)
	// The broader grant stays in place.
	assert.Equal(t, "user:read,roles:read", second.Scope)
	assert.Len(t, store.tokens, 1)
}

func TestExchange_ReauthorizeReplacesScopeAndResetsWindow(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	app := seedApplication(store)
	principal := regularPrincipal()

	code := authorize(t, engine, store, app, principal, "user:read")
	first, err := engine.Exchange(context.Background(), exchangeRequest(app, code))
	require.NoError(t, err)

	var token *models.OAuthToken
	for _, stored := range store.tokens {
		token = stored
	}
	require.NotNil(t, token)
	aged := time.Now().UTC().Add(-48 * time.Hour)
	token.CreatedAt = aged

	code = authorize(t, engine, store, app, principal, "roles:read")
	second, err := engine.Exchange(context.Background(), exchangeRequest(app, code))
	require.NoError(t, err)

	// Same bearer, new scope, fresh validity window.
	assert.Equal(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, "roles:read", second.Scope)
	assert.True(t, token.CreatedAt.After(aged))
	assert.Len(t, store.tokens, 1)
}

func TestRevoke(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)

	token := &models.OAuthToken{ID: uuid.New(), UserID: uuid.New()}
	store.tokens[token.ID] = token

	err := engine.Revoke(context.Background(), regularPrincipal())
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	assert.Len(t, store.tokens, 1)

	bearer := &auth.Principal{UserID: token.UserID, Token: token}
	require.NoError(t, engine.Revoke(context.Background(), bearer))
	assert.Empty(t, store.tokens)
}
