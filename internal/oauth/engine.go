// Package oauth implements the authorization-code engine: code
// issuance, code-to-token exchange with per-(user, application)
// deduplication, reauthorization and revocation.
package oauth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/audit"
	"github.com/veldtec/authgate/internal/auth"
	"github.com/veldtec/authgate/internal/models"
)

// ApplicationStore and TokenStore are the storage slices the engine
// needs. Lookups return (nil, nil) on miss.
type ApplicationStore interface {
	GetApplicationByID(ctx context.Context, id uuid.UUID) (*models.OAuthApplication, error)
}

type TokenStore interface {
	GetTokenByUserAndApplication(ctx context.Context, userID, applicationID uuid.UUID) (*models.OAuthToken, error)
	CreateToken(ctx context.Context, token *models.OAuthToken) error
	UpdateToken(ctx context.Context, token *models.OAuthToken) error
	DeleteToken(ctx context.Context, id uuid.UUID) error
}

// Engine wires the stores together. All methods are safe for
// concurrent use; the single-token invariant is best-effort under
// racing exchanges, which degrade to a no-op reauthorize.
type Engine struct {
	apps     ApplicationStore
	tokens   TokenStore
	sessions auth.SessionStore
	audit    audit.Logger
	logger   *slog.Logger
}

func NewEngine(apps ApplicationStore, tokens TokenStore, sessions auth.SessionStore, auditLogger audit.Logger, logger *slog.Logger) *Engine {
	return &Engine{
		apps:     apps,
		tokens:   tokens,
		sessions: sessions,
		audit:    auditLogger,
		logger:   logger,
	}
}

// AuthorizeResult echoes the inputs plus the minted code.
type AuthorizeResult struct {
	ClientID    uuid.UUID `json:"clientId"`
	RedirectURI string    `json:"redirectUri"`
	Code        string    `json:"code"`
}

// Authorize mints an 8-digit authorization code for the caller. The
// caller must be a real, enabled user; the redirect URI must match a
// registered one exactly, trailing slash included.
func (e *Engine) Authorize(ctx context.Context, principal *auth.Principal, clientID uuid.UUID, redirectURI string, scope models.ScopeList) (*AuthorizeResult, error) {
	if !principal.IsUser() {
		return nil, apperrors.Forbidden("Missing permissions!")
	}
	if principal.User.IsSystem() {
		return nil, apperrors.Forbidden("The system user cannot authorize applications!")
	}
	if len(scope) == 0 {
		return nil, apperrors.Validation("Scope must not be empty!")
	}

	app, err := e.apps.GetApplicationByID(ctx, clientID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if app == nil {
		return nil, apperrors.NotFound("OAuth application not found!")
	}
	if !app.HasRedirectURI(redirectURI) {
		return nil, apperrors.Forbidden("Redirect URI does not match!")
	}

	code, err := auth.NewOAuthCode()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate code", err)
	}

	session := models.NewOAuthCodeSession(models.OAuthCodeData{
		ClientID:     app.ID,
		ClientSecret: app.Secret,
		UserID:       principal.UserID,
		Code:         code,
		Scope:        scope,
		GrantType:    "authorization_code",
		RedirectURI:  redirectURI,
	})
	if err := e.sessions.InsertSession(ctx, session); err != nil {
		return nil, apperrors.Database(err)
	}

	return &AuthorizeResult{ClientID: app.ID, RedirectURI: redirectURI, Code: code}, nil
}

// ExchangeRequest is the RFC 6749 token request, accepted in form or
// JSON shape by the handler.
type ExchangeRequest struct {
	ClientID     string
	ClientSecret string
	GrantType    string
	Code         string
	RedirectURI  string
}

// TokenResponse is the unwrapped RFC 6749 response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// Exchange redeems a single-use authorization code. The session is
// deleted before the credential comparison so a replay fails even
// when the first attempt was rejected.
func (e *Engine) Exchange(ctx context.Context, req ExchangeRequest) (*TokenResponse, error) {
	clientID, err := uuid.Parse(strings.TrimSpace(req.ClientID))
	if err != nil {
		return nil, apperrors.InvalidUUID(req.ClientID)
	}

	sessionID := models.SessionPrefixOAuthCode + strings.TrimSpace(req.Code)
	session, err := e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || session.Payload.OAuthCode == nil {
		return nil, apperrors.InvalidToken("Invalid authorization code!")
	}
	if err := e.sessions.DeleteSession(ctx, sessionID); err != nil {
		return nil, apperrors.Database(err)
	}
	code := session.Payload.OAuthCode

	if code.ClientID != clientID ||
		code.GrantType != strings.TrimSpace(req.GrantType) ||
		!auth.SecureCompare(strings.TrimSpace(req.ClientSecret), code.ClientSecret) ||
		code.RedirectURI != strings.TrimSpace(req.RedirectURI) {
		return nil, apperrors.InvalidToken("Invalid authorization code!")
	}

	token, err := e.selectToken(ctx, code)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: token.Token,
		TokenType:   "Bearer",
		ExpiresIn:   token.ExpiresIn,
		Scope:       token.Scope.Join(),
	}, nil
}

// selectToken applies the per-(user, application) selection: mint
// when absent, reuse when the existing scope strictly covers the
// request, otherwise replace scope and reset the window.
func (e *Engine) selectToken(ctx context.Context, code *models.OAuthCodeData) (*models.OAuthToken, error) {
	existing, err := e.tokens.GetTokenByUserAndApplication(ctx, code.UserID, code.ClientID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	if existing == nil {
		bearer, err := auth.NewOAuthToken()
		if err != nil {
			return nil, apperrors.Internal("Failed to generate token", err)
		}
		token := &models.OAuthToken{
			ID:            uuid.New(),
			ApplicationID: code.ClientID,
			UserID:        code.UserID,
			Token:         bearer,
			Scope:         code.Scope,
			ExpiresIn:     models.OAuthTokenTTL,
			CreatedAt:     timeNow().UTC(),
		}
		if err := e.tokens.CreateToken(ctx, token); err != nil {
			return nil, apperrors.Database(err)
		}
		return token, nil
	}

	if existing.CoversScope(code.Scope) {
		return existing, nil
	}

	existing.Scope = code.Scope
	existing.ExpiresIn = models.OAuthTokenTTL
	existing.CreatedAt = timeNow().UTC()
	if err := e.tokens.UpdateToken(ctx, existing); err != nil {
		return nil, apperrors.Database(err)
	}
	return existing, nil
}

// Revoke deletes the token record matching the inbound bearer. Only
// token principals may revoke, and only themselves.
func (e *Engine) Revoke(ctx context.Context, principal *auth.Principal) error {
	if !principal.IsToken() {
		return apperrors.Forbidden("Only token principals can revoke!")
	}
	if err := e.tokens.DeleteToken(ctx, principal.Token.ID); err != nil {
		return apperrors.Database(err)
	}
	return nil
}
