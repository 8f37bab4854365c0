package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/veldtec/authgate/internal/api/middleware"
	"github.com/veldtec/authgate/internal/auth"
	"github.com/veldtec/authgate/internal/models"
	"github.com/veldtec/authgate/internal/storage"
)

func TestRouterMountsEndpoints(t *testing.T) {
	server := NewServer(Deps{})

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/auth/register"},
		{http.MethodPost, "/api/auth/login"},
		{http.MethodPost, "/api/auth/mfa"},
		{http.MethodGet, "/api/auth/passkeys/authenticate/start"},
		{http.MethodPost, "/api/auth/passkeys/authenticate/finish"},
		{http.MethodPost, "/api/oauth/token"},
		{http.MethodPost, "/api/oauth/token/json"},
		{http.MethodGet, "/api/users/@me"},
		{http.MethodGet, "/api/users/@me/plain"},
		{http.MethodGet, "/api/users/00000000-0000-0000-0000-000000000001/passkeys"},
		{http.MethodGet, "/api/users/00000000-0000-0000-0000-000000000001/connections"},
		{http.MethodGet, "/api/users/00000000-0000-0000-0000-000000000001/audit-logs"},
		{http.MethodGet, "/api/passkeys"},
		{http.MethodGet, "/api/audit-logs"},
		{http.MethodGet, "/api/audit-logs/user"},
		{http.MethodGet, "/api/audit-logs/user/entity/some-id"},
		{http.MethodGet, "/api/settings"},
		{http.MethodPatch, "/api/admin/settings"},
	}

	for _, route := range routes {
		rctx := chi.NewRouteContext()
		assert.True(t, server.Router.Match(rctx, route.method, route.path), "%s %s not mounted", route.method, route.path)
	}
}

// authedRequest builds a request carrying a resolved principal and chi
// route params, bypassing the middleware chain.
func authedRequest(method, target string, principal *auth.Principal, params ...string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(params); i += 2 {
		rctx.URLParams.Add(params[i], params[i+1])
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.PrincipalKey, principal)
	return req.WithContext(ctx)
}

func regularUserPrincipal() *auth.Principal {
	user := &models.User{ID: uuid.New(), Roles: []uuid.UUID{models.DefaultRoleID}}
	return &auth.Principal{UserID: user.ID, User: user}
}

func scopedTokenPrincipal(scopes ...string) *auth.Principal {
	list, err := models.ParseScopes(scopes)
	if err != nil {
		panic(err)
	}
	userID := uuid.New()
	return &auth.Principal{UserID: userID, Token: &models.OAuthToken{UserID: userID, Scope: list}}
}

// emptyStore is safe for handler paths that reject before any query.
func emptyStore() *storage.Store {
	return &storage.Store{}
}
