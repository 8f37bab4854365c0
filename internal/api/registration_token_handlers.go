package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/api/helpers"
	"github.com/veldtec/authgate/internal/api/middleware"
	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/audit"
	"github.com/veldtec/authgate/internal/auth"
	"github.com/veldtec/authgate/internal/models"
	"github.com/veldtec/authgate/internal/storage"
)

// RegistrationTokenHandler serves invite code CRUD. Admin only.
type RegistrationTokenHandler struct {
	store *storage.Store
	audit audit.Logger
}

func NewRegistrationTokenHandler(store *storage.Store, auditLogger audit.Logger) *RegistrationTokenHandler {
	return &RegistrationTokenHandler{store: store, audit: auditLogger}
}

// List handles GET /registration-tokens.
func (h *RegistrationTokenHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsAdmin(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	tokens, err := h.store.ListRegistrationTokens(r.Context())
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	dtos := make([]models.RegistrationTokenDTO, 0, len(tokens))
	for i := range tokens {
		dtos = append(dtos, tokens[i].DTO())
	}
	helpers.Success(w, http.StatusOK, "Found registration tokens", dtos)
}

// Get handles GET /registration-tokens/<id>.
func (h *RegistrationTokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsAdmin(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}

	token, err := h.store.GetRegistrationTokenByID(r.Context(), id)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if token == nil {
		helpers.Error(w, apperrors.NotFound("Registration token not found!"))
		return
	}
	helpers.Success(w, http.StatusOK, "Found registration token", token.DTO())
}

type createRegistrationTokenRequest struct {
	MaxUses   *int     `json:"maxUses"`
	ExpiresIn *int64   `json:"expiresIn"`
	AutoRoles []string `json:"autoRoles,omitempty"`
}

// Create handles POST /registration-tokens. MaxUses defaults to one;
// an expiry window starts counting from now.
func (h *RegistrationTokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsAdmin(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	var req createRegistrationTokenRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		slog.Warn("registration_token_decode_failed", "error", err)
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}

	maxUses := 1
	if req.MaxUses != nil {
		if *req.MaxUses < 1 {
			helpers.Error(w, apperrors.Validation("Max uses must be at least 1!"))
			return
		}
		maxUses = *req.MaxUses
	}
	if req.ExpiresIn != nil && *req.ExpiresIn < 1 {
		helpers.Error(w, apperrors.Validation("Expiry must be at least 1 second!"))
		return
	}

	autoRoles, err := h.resolveAutoRoles(r, req.AutoRoles)
	if err != nil {
		helpers.Error(w, err)
		return
	}

	code, err := auth.NewRegistrationCode()
	if err != nil {
		helpers.Error(w, apperrors.Internal("Failed to generate code", err))
		return
	}

	token := &models.RegistrationToken{
		ID:        uuid.New(),
		Code:      code,
		MaxUses:   maxUses,
		AutoRoles: autoRoles,
		CreatedAt: timeNow().UTC(),
	}
	if req.ExpiresIn != nil {
		now := timeNow().UTC()
		token.ExpiresIn = req.ExpiresIn
		token.ExpiresFrom = &now
	}

	if err := h.store.CreateRegistrationToken(r.Context(), token); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}

	diff := models.NewDiff()
	diff.Set("maxUses", "", strconv.Itoa(maxUses))
	h.audit.Log(r.Context(), models.NewAuditLog(token.ID.String(), models.AuditEntityRegistrationToken, models.AuditActionCreate, "Registration token created.", principal.UserID, nil, diff.NewValues()))

	helpers.Success(w, http.StatusCreated, "Registration token created", token.DTO())
}

type updateRegistrationTokenRequest struct {
	MaxUses   *int      `json:"maxUses"`
	ExpiresIn *int64    `json:"expiresIn"`
	AutoRoles *[]string `json:"autoRoles"`
}

// Update handles PATCH /registration-tokens/<id>. Setting expiresIn
// restarts the expiry window from now.
func (h *RegistrationTokenHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsAdmin(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}

	var req updateRegistrationTokenRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}

	token, err := h.store.GetRegistrationTokenByID(r.Context(), id)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if token == nil {
		helpers.Error(w, apperrors.NotFound("Registration token not found!"))
		return
	}

	diff := models.NewDiff()
	if req.MaxUses != nil {
		if *req.MaxUses < 1 {
			helpers.Error(w, apperrors.Validation("Max uses must be at least 1!"))
			return
		}
		if diff.Compare("maxUses", strconv.Itoa(token.MaxUses), strconv.Itoa(*req.MaxUses)) {
			token.MaxUses = *req.MaxUses
		}
	}
	if req.ExpiresIn != nil {
		if *req.ExpiresIn < 1 {
			helpers.Error(w, apperrors.Validation("Expiry must be at least 1 second!"))
			return
		}
		old := ""
		if token.ExpiresIn != nil {
			old = strconv.FormatInt(*token.ExpiresIn, 10)
		}
		if diff.Compare("expiresIn", old, strconv.FormatInt(*req.ExpiresIn, 10)) {
			now := timeNow().UTC()
			token.ExpiresIn = req.ExpiresIn
			token.ExpiresFrom = &now
		}
	}
	if req.AutoRoles != nil {
		autoRoles, err := h.resolveAutoRoles(r, *req.AutoRoles)
		if err != nil {
			helpers.Error(w, err)
			return
		}
		if diff.Compare("autoRoles", joinRoles(token.AutoRoles), joinRoles(autoRoles)) {
			token.AutoRoles = autoRoles
		}
	}

	if !diff.Modified() {
		helpers.Error(w, apperrors.NoUpdatesApplied())
		return
	}

	if err := h.store.UpdateRegistrationToken(r.Context(), token); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	h.audit.Log(r.Context(), models.NewAuditLog(token.ID.String(), models.AuditEntityRegistrationToken, models.AuditActionUpdate, "Registration token updated.", principal.UserID, diff.OldValues(), diff.NewValues()))

	helpers.Success(w, http.StatusOK, "Registration token updated", token.DTO())
}

// Delete handles DELETE /registration-tokens/<id>.
func (h *RegistrationTokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsAdmin(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}

	token, err := h.store.GetRegistrationTokenByID(r.Context(), id)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if token == nil {
		helpers.Error(w, apperrors.NotFound("Registration token not found!"))
		return
	}

	if err := h.store.DeleteRegistrationToken(r.Context(), id); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	h.audit.Log(r.Context(), models.NewAuditLog(id.String(), models.AuditEntityRegistrationToken, models.AuditActionDelete, "Registration token deleted.", principal.UserID, nil, nil))

	helpers.Success(w, http.StatusOK, "Registration token deleted", nil)
}

// resolveAutoRoles parses role ids and requires each to exist. The
// Default role is implicit on redemption and is stripped here.
func (h *RegistrationTokenHandler) resolveAutoRoles(r *http.Request, raw []string) ([]uuid.UUID, error) {
	roles := make([]uuid.UUID, 0, len(raw))
	for _, rawID := range raw {
		id, err := uuid.Parse(strings.TrimSpace(rawID))
		if err != nil {
			return nil, apperrors.InvalidUUID(rawID)
		}
		if id == models.DefaultRoleID {
			continue
		}
		role, err := h.store.GetRoleByID(r.Context(), id)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if role == nil {
			return nil, apperrors.Validation("Role does not exist!")
		}
		roles = append(roles, id)
	}
	return roles, nil
}
