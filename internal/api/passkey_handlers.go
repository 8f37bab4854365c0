package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/api/helpers"
	"github.com/veldtec/authgate/internal/api/middleware"
	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/audit"
	"github.com/veldtec/authgate/internal/auth"
	"github.com/veldtec/authgate/internal/models"
	"github.com/veldtec/authgate/internal/storage"
)

// PasskeyHandler serves WebAuthn ceremonies and passkey management.
type PasskeyHandler struct {
	svc   *auth.PasskeyService
	store *storage.Store
	audit audit.Logger
}

func NewPasskeyHandler(svc *auth.PasskeyService, store *storage.Store, auditLogger audit.Logger) *PasskeyHandler {
	return &PasskeyHandler{svc: svc, store: store, audit: auditLogger}
}

// BeginAuthentication handles GET /auth/passkeys/authenticate/start.
func (h *PasskeyHandler) BeginAuthentication(w http.ResponseWriter, r *http.Request) {
	start, err := h.svc.BeginDiscoverableLogin(r.Context())
	if err != nil {
		helpers.Error(w, err)
		return
	}
	helpers.Success(w, http.StatusOK, "Authentication challenge issued", start)
}

type finishAuthenticationRequest struct {
	AuthenticationID uuid.UUID       `json:"authenticationId"`
	Credential       json.RawMessage `json:"credential"`
}

type passkeyLoginResponse struct {
	User  models.UserDTO `json:"user"`
	Token string         `json:"token"`
}

// FinishAuthentication handles POST /auth/passkeys/authenticate/finish.
func (h *PasskeyHandler) FinishAuthentication(w http.ResponseWriter, r *http.Request) {
	var req finishAuthenticationRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		slog.Warn("passkey_auth_decode_failed", "error", err)
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}
	if req.AuthenticationID == uuid.Nil || len(req.Credential) == 0 {
		helpers.Error(w, apperrors.Validation("Authentication id and credential are required!"))
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBytes(req.Credential)
	if err != nil {
		helpers.Error(w, apperrors.Validation("Invalid credential response!"))
		return
	}

	user, err := h.svc.FinishDiscoverableLogin(r.Context(), req.AuthenticationID, response)
	if err != nil {
		helpers.Error(w, err)
		return
	}
	helpers.Success(w, http.StatusOK, "Login successful", passkeyLoginResponse{
		User:  user.DTO(),
		Token: user.Token,
	})
}

// BeginRegistration handles GET /passkeys/register/start.
func (h *PasskeyHandler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !principal.IsUser() {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	start, err := h.svc.BeginRegistration(r.Context(), principal.User)
	if err != nil {
		helpers.Error(w, err)
		return
	}
	helpers.Success(w, http.StatusOK, "Registration challenge issued", start)
}

type finishRegistrationRequest struct {
	RegistrationID uuid.UUID       `json:"registrationId"`
	Credential     json.RawMessage `json:"credential"`
}

// FinishRegistration handles POST /passkeys/register/finish.
func (h *PasskeyHandler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !principal.IsUser() {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	var req finishRegistrationRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		slog.Warn("passkey_reg_decode_failed", "error", err)
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}
	if req.RegistrationID == uuid.Nil || len(req.Credential) == 0 {
		helpers.Error(w, apperrors.Validation("Registration id and credential are required!"))
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBytes(req.Credential)
	if err != nil {
		helpers.Error(w, apperrors.Validation("Invalid credential response!"))
		return
	}

	passkey, err := h.svc.FinishRegistration(r.Context(), principal.User, req.RegistrationID, response)
	if err != nil {
		helpers.Error(w, err)
		return
	}
	helpers.Success(w, http.StatusCreated, "Passkey registered", passkey.DTO())
}

// List handles GET /passkeys, the admin-wide view across all users.
func (h *PasskeyHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsAdmin(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	passkeys, err := h.store.ListAllPasskeys(r.Context())
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	helpers.Success(w, http.StatusOK, "Found passkeys", passkeyDTOs(passkeys))
}

// ListByUser handles GET /users/<id>/passkeys. Strictly the owner; an
// admin uses GET /passkeys instead.
func (h *PasskeyHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}
	if !principal.IsUser() || principal.UserID != userID {
		helpers.Error(w, apperrors.Forbidden("Cannot access passkeys for another user!"))
		return
	}

	passkeys, err := h.store.ListPasskeysByUser(r.Context(), userID)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	helpers.Success(w, http.StatusOK, "Found passkeys", passkeyDTOs(passkeys))
}

func passkeyDTOs(passkeys []models.Passkey) []models.PasskeyDTO {
	dtos := make([]models.PasskeyDTO, 0, len(passkeys))
	for i := range passkeys {
		dtos = append(dtos, passkeys[i].DTO())
	}
	return dtos
}

// Get handles GET /passkeys/<id>.
func (h *PasskeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	passkey, err := h.ownedPasskey(r, principal)
	if err != nil {
		helpers.Error(w, err)
		return
	}
	helpers.Success(w, http.StatusOK, "Found passkey", passkey.DTO())
}

type updatePasskeyRequest struct {
	Name *string `json:"name"`
}

// Update handles PATCH /passkeys/<id>, renaming the passkey.
func (h *PasskeyHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	passkey, err := h.ownedPasskey(r, principal)
	if err != nil {
		helpers.Error(w, err)
		return
	}

	var req updatePasskeyRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}

	diff := models.NewDiff()
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			helpers.Error(w, apperrors.Validation("Passkey name must not be empty!"))
			return
		}
		if diff.Compare("name", passkey.Name, name) {
			passkey.Name = name
		}
	}

	if !diff.Modified() {
		helpers.Error(w, apperrors.NoUpdatesApplied())
		return
	}

	if err := h.store.UpdatePasskey(r.Context(), passkey); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	h.audit.Log(r.Context(), models.NewAuditLog(passkey.ID, models.AuditEntityPasskey, models.AuditActionUpdate, "Passkey updated.", principal.UserID, diff.OldValues(), diff.NewValues()))

	helpers.Success(w, http.StatusOK, "Passkey updated", passkey.DTO())
}

// Delete handles DELETE /passkeys/<id>.
func (h *PasskeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	passkey, err := h.ownedPasskey(r, principal)
	if err != nil {
		helpers.Error(w, err)
		return
	}

	if err := h.store.DeletePasskey(r.Context(), passkey.ID); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	h.audit.Log(r.Context(), models.NewAuditLog(passkey.ID, models.AuditEntityPasskey, models.AuditActionDelete, "Passkey deleted.", principal.UserID, nil, nil))

	helpers.Success(w, http.StatusOK, "Passkey deleted", nil)
}

// ownedPasskey loads the addressed passkey and enforces that the
// caller is a user principal owning it.
func (h *PasskeyHandler) ownedPasskey(r *http.Request, principal *auth.Principal) (*models.Passkey, error) {
	if !principal.IsUser() {
		return nil, apperrors.Forbidden("Missing permissions!")
	}
	id := chi.URLParam(r, "id")
	passkey, err := h.store.GetPasskey(r.Context(), id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if passkey == nil {
		return nil, apperrors.NotFound("Passkey not found!")
	}
	if passkey.UserID != principal.UserID {
		return nil, apperrors.Forbidden("Missing permissions!")
	}
	return passkey, nil
}
