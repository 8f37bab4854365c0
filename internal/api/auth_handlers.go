package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/api/helpers"
	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/auth"
	"github.com/veldtec/authgate/internal/models"
	"github.com/veldtec/authgate/internal/storage"
)

// AuthHandler serves registration, password login and MFA
// verification.
type AuthHandler struct {
	svc      *auth.Service
	resolver *auth.PrincipalResolver
	settings *storage.SettingsCache
}

func NewAuthHandler(svc *auth.Service, resolver *auth.PrincipalResolver, settings *storage.SettingsCache) *AuthHandler {
	return &AuthHandler{svc: svc, resolver: resolver, settings: settings}
}

type registerRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	RegistrationCode string `json:"registrationCode,omitempty"`
}

func (req *registerRequest) Validate() error {
	email := strings.TrimSpace(req.Email)
	if len(email) < 5 || !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return apperrors.Validation("Invalid email address!")
	}
	if strings.TrimSpace(req.FirstName) == "" {
		return apperrors.Validation("First name must not be empty!")
	}
	if len(req.Password) < 8 {
		return apperrors.Validation("Password must be at least 8 characters!")
	}
	return nil
}

// Register handles POST /auth/register and POST /users. The caller
// may be anonymous; an authenticated admin bypasses the invite gate.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		slog.Warn("register_decode_failed", "error", err)
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}
	if err := req.Validate(); err != nil {
		helpers.Error(w, err)
		return
	}

	// Authentication is optional here: a valid bearer makes its owner
	// the audit author and can open the invite gate.
	var author *auth.Principal
	if header := r.Header.Get("Authorization"); header != "" {
		principal, err := h.resolver.Resolve(r.Context(), header)
		if err != nil {
			helpers.Error(w, err)
			return
		}
		author = principal
	}

	user, err := h.svc.Register(r.Context(), auth.RegisterParams{
		Email:            req.Email,
		Password:         req.Password,
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		RegistrationCode: strings.TrimSpace(req.RegistrationCode),
		OpenRegistration: h.settings.Get().OpenRegistration,
		Author:           author,
	})
	if err != nil {
		helpers.Error(w, err)
		return
	}

	helpers.Success(w, http.StatusCreated, "User created", user.DTO())
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *loginRequest) Validate() error {
	if req.Email == "" || req.Password == "" {
		return apperrors.Validation("Email and password are required!")
	}
	return nil
}

type loginResponse struct {
	User        *models.UserDTO `json:"user,omitempty"`
	Token       string          `json:"token,omitempty"`
	MfaRequired bool            `json:"mfaRequired"`
	HasPasskeys bool            `json:"hasPasskeys"`
	MfaFlowID   *uuid.UUID      `json:"mfaFlowId,omitempty"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		slog.Warn("login_decode_failed", "error", err)
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}
	if err := req.Validate(); err != nil {
		helpers.Error(w, err)
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		helpers.Error(w, err)
		return
	}

	if result.MfaRequired {
		helpers.Success(w, http.StatusOK, "MFA required", loginResponse{
			MfaRequired: true,
			HasPasskeys: result.HasPasskeys,
			MfaFlowID:   result.MfaFlowID,
		})
		return
	}

	dto := result.User.DTO()
	helpers.Success(w, http.StatusOK, "Login successful", loginResponse{
		User:        &dto,
		Token:       result.Token,
		HasPasskeys: result.HasPasskeys,
	})
}

type verifyMfaRequest struct {
	FlowID uuid.UUID `json:"flowId"`
	Code   string    `json:"code"`
}

func (req *verifyMfaRequest) Validate() error {
	if req.FlowID == uuid.Nil || req.Code == "" {
		return apperrors.Validation("Flow id and code are required!")
	}
	return nil
}

type verifyMfaResponse struct {
	User  models.UserDTO `json:"user"`
	Token string         `json:"token"`
}

// VerifyMfa handles POST /auth/mfa. The flow id carries the identity;
// no bearer is required.
func (h *AuthHandler) VerifyMfa(w http.ResponseWriter, r *http.Request) {
	var req verifyMfaRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		slog.Warn("mfa_decode_failed", "error", err)
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}
	if err := req.Validate(); err != nil {
		helpers.Error(w, err)
		return
	}

	result, err := h.svc.VerifyMfa(r.Context(), req.FlowID, req.Code)
	if err != nil {
		helpers.Error(w, err)
		return
	}

	message := "MFA complete"
	if result.Kind == models.MfaKindEnableTotp {
		message = "TOTP enabled"
	}
	helpers.Success(w, http.StatusOK, message, verifyMfaResponse{
		User:  result.User.DTO(),
		Token: result.Token,
	})
}
