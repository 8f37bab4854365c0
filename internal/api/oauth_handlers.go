package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/api/helpers"
	"github.com/veldtec/authgate/internal/api/middleware"
	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/models"
	"github.com/veldtec/authgate/internal/oauth"
)

// OAuthHandler serves the authorization-code endpoints. The token
// endpoints answer in the bare RFC 6749 shape, not the envelope.
type OAuthHandler struct {
	engine *oauth.Engine
}

func NewOAuthHandler(engine *oauth.Engine) *OAuthHandler {
	return &OAuthHandler{engine: engine}
}

type authorizeRequest struct {
	ClientID    string   `json:"clientId"`
	RedirectURI string   `json:"redirectUri"`
	Scope       []string `json:"scope"`
}

// Authorize handles POST /oauth/authorize.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())

	var req authorizeRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		slog.Warn("authorize_decode_failed", "error", err)
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(req.ClientID))
		return
	}
	scope, err := models.ParseScopes(req.Scope)
	if err != nil {
		helpers.Error(w, apperrors.Validation("Invalid scope!"))
		return
	}

	result, err := h.engine.Authorize(r.Context(), principal, clientID, req.RedirectURI, scope)
	if err != nil {
		helpers.Error(w, err)
		return
	}
	helpers.Success(w, http.StatusOK, "Authorization code issued", result)
}

// Token handles POST /oauth/token with a form-urlencoded body.
func (h *OAuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		helpers.Error(w, apperrors.Validation("Invalid form body!"))
		return
	}
	h.exchange(w, r, oauth.ExchangeRequest{
		ClientID:     r.PostFormValue("client_id"),
		ClientSecret: r.PostFormValue("client_secret"),
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
	})
}

type tokenJSONRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
}

// TokenJSON handles POST /oauth/token/json for clients that cannot
// send form bodies.
func (h *OAuthHandler) TokenJSON(w http.ResponseWriter, r *http.Request) {
	var req tokenJSONRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}
	h.exchange(w, r, oauth.ExchangeRequest{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		GrantType:    req.GrantType,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
	})
}

func (h *OAuthHandler) exchange(w http.ResponseWriter, r *http.Request, req oauth.ExchangeRequest) {
	token, err := h.engine.Exchange(r.Context(), req)
	if err != nil {
		helpers.Error(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, token)
}

// Revoke handles POST /oauth/token/revoke.
func (h *OAuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if err := h.engine.Revoke(r.Context(), principal); err != nil {
		helpers.Error(w, err)
		return
	}
	helpers.Success(w, http.StatusOK, "Token revoked", nil)
}
