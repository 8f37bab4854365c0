package api

import (
	"log/slog"
	"net/http"
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

// UserHandler serves the user resource and the TOTP management
// endpoints.
type UserHandler struct {
	store  *storage.Store
	svc    *auth.Service
	hasher auth.PasswordHasher
	audit  audit.Logger
}

func NewUserHandler(store *storage.Store, svc *auth.Service, hasher auth.PasswordHasher, auditLogger audit.Logger) *UserHandler {
	return &UserHandler{store: store, svc: svc, hasher: hasher, audit: auditLogger}
}

// Me handles GET /users/@me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.CanActOnUser(principal, principal.UserID, models.ActionRead) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	user, err := h.store.GetUserByID(r.Context(), principal.UserID)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if user == nil {
		helpers.Error(w, apperrors.NotFound("User not found!"))
		return
	}
	helpers.Success(w, http.StatusOK, "Found user", user.DTO())
}

// MePlain handles GET /users/@me/plain. Same policy as Me but the DTO
// is returned without the envelope, for OAuth clients that expect a
// bare profile object.
func (h *UserHandler) MePlain(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.CanActOnUser(principal, principal.UserID, models.ActionRead) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	user, err := h.store.GetUserByID(r.Context(), principal.UserID)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if user == nil {
		helpers.Error(w, apperrors.NotFound("User not found!"))
		return
	}
	helpers.RespondJSON(w, http.StatusOK, user.DTO())
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsAdmin(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	dtos := make([]models.UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, u.DTO())
	}
	helpers.Success(w, http.StatusOK, "Found users", dtos)
}

// Get handles GET /users/<id>.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}
	if !auth.CanActOnUser(principal, targetID, models.ActionRead) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	user, err := h.store.GetUserByID(r.Context(), targetID)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if user == nil {
		helpers.Error(w, apperrors.NotFound("User not found!"))
		return
	}
	helpers.Success(w, http.StatusOK, "Found user", user.DTO())
}

type updateUserRequest struct {
	Email     *string   `json:"email"`
	FirstName *string   `json:"firstName"`
	LastName  *string   `json:"lastName"`
	Password  *string   `json:"password"`
	Roles     *[]string `json:"roles"`
	Disabled  *bool     `json:"disabled"`
}

// Update handles PATCH /users/<id>. Absent fields are untouched;
// identical values drop out of the diff; an empty diff short-circuits
// before the store.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}
	if !auth.CanActOnUser(principal, targetID, models.ActionUpdate) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	var req updateUserRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		slog.Warn("user_update_decode_failed", "error", err)
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}

	user, err := h.store.GetUserByID(r.Context(), targetID)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if user == nil {
		helpers.Error(w, apperrors.NotFound("User not found!"))
		return
	}
	if user.IsSystem() {
		helpers.Error(w, apperrors.SystemUserModification())
		return
	}

	diff := models.NewDiff()

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if len(email) < 5 || !strings.Contains(email, "@") || !strings.Contains(email, ".") {
			helpers.Error(w, apperrors.Validation("Invalid email address!"))
			return
		}
		if email != user.Email {
			existing, err := h.store.GetUserByEmail(r.Context(), email)
			if err != nil {
				helpers.Error(w, apperrors.Database(err))
				return
			}
			if existing != nil {
				helpers.Error(w, apperrors.Validation("User with this email already exists!"))
				return
			}
		}
		if diff.Compare("email", user.Email, email) {
			user.Email = email
		}
	}
	if req.FirstName != nil {
		name := strings.TrimSpace(*req.FirstName)
		if name == "" {
			helpers.Error(w, apperrors.Validation("First name must not be empty!"))
			return
		}
		if diff.Compare("firstName", user.FirstName, name) {
			user.FirstName = name
		}
	}
	if req.LastName != nil {
		if diff.Compare("lastName", user.LastName, strings.TrimSpace(*req.LastName)) {
			user.LastName = strings.TrimSpace(*req.LastName)
		}
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			helpers.Error(w, apperrors.Validation("Password must be at least 8 characters!"))
			return
		}
		hash, err := h.hasher.Hash(*req.Password)
		if err != nil {
			helpers.Error(w, apperrors.Internal("Failed to hash password", err))
			return
		}
		user.PasswordHash = hash
		diff.Set("password", "", "")
	}
	if req.Roles != nil {
		if !auth.IsAdmin(principal) {
			helpers.Error(w, apperrors.Forbidden("Only admins can change roles!"))
			return
		}
		roles, err := h.resolveRoles(r, principal, *req.Roles)
		if err != nil {
			helpers.Error(w, err)
			return
		}
		if diff.Compare("roles", joinRoles(user.Roles), joinRoles(roles)) {
			user.Roles = roles
		}
	}
	if req.Disabled != nil {
		if !auth.IsAdmin(principal) {
			helpers.Error(w, apperrors.Forbidden("Only admins can disable users!"))
			return
		}
		if diff.Compare("disabled", boolString(user.Disabled), boolString(*req.Disabled)) {
			user.Disabled = *req.Disabled
		}
	}

	if !diff.Modified() {
		helpers.Error(w, apperrors.NoUpdatesApplied())
		return
	}

	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	h.audit.Log(r.Context(), models.NewAuditLog(user.ID.String(), models.AuditEntityUser, models.AuditActionUpdate, "User updated.", principal.UserID, diff.OldValues(), diff.NewValues()))

	helpers.Success(w, http.StatusOK, "User updated", user.DTO())
}

// resolveRoles parses and validates a requested role set. The Default
// role is always included; the Admin role may only be granted by the
// system user.
func (h *UserHandler) resolveRoles(r *http.Request, principal *auth.Principal, raw []string) ([]uuid.UUID, error) {
	roles := []uuid.UUID{models.DefaultRoleID}
	for _, rawID := range raw {
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, apperrors.InvalidUUID(rawID)
		}
		if id == models.DefaultRoleID {
			continue
		}
		if id == models.AdminRoleID && !auth.IsSystem(principal) {
			return nil, apperrors.Forbidden("Only the system user can assign the admin role!")
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

// Delete handles DELETE /users/<id>. The store cascades OAuth tokens,
// owned applications and passkeys in one transaction.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}
	if !auth.CanActOnUser(principal, targetID, models.ActionDelete) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	user, err := h.store.GetUserByID(r.Context(), targetID)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if user == nil {
		helpers.Error(w, apperrors.NotFound("User not found!"))
		return
	}
	if user.IsSystem() {
		helpers.Error(w, apperrors.SystemUserModification())
		return
	}

	if err := h.store.DeleteUser(r.Context(), targetID); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	h.audit.Log(r.Context(), models.NewAuditLog(targetID.String(), models.AuditEntityUser, models.AuditActionDelete, "User deleted.", principal.UserID, nil, nil))

	helpers.Success(w, http.StatusOK, "User deleted", nil)
}

type enableTotpRequest struct {
	Password string `json:"password"`
}

type enableTotpResponse struct {
	MfaRequired bool      `json:"mfaRequired"`
	MfaFlowID   uuid.UUID `json:"mfaFlowId"`
	QRCode      string    `json:"qrCode"`
}

// EnableTotp handles POST /users/<id>/mfa/totp/enable. The secret is
// parked on the flow session; /auth/mfa with a valid code commits it.
func (h *UserHandler) EnableTotp(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}

	var req enableTotpRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}

	result, err := h.svc.StartEnableTotp(r.Context(), principal, targetID, req.Password)
	if err != nil {
		helpers.Error(w, err)
		return
	}
	helpers.Success(w, http.StatusOK, "TOTP flow started", enableTotpResponse{
		MfaRequired: true,
		MfaFlowID:   result.FlowID,
		QRCode:      result.QRCode,
	})
}

type disableTotpRequest struct {
	Code     string `json:"code,omitempty"`
	Password string `json:"password,omitempty"`
}

// DisableTotp handles POST /users/<id>/mfa/totp/disable. Proof is a
// current code or the account password; the bearer rotates either way.
func (h *UserHandler) DisableTotp(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}

	var req disableTotpRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}

	user, err := h.svc.DisableTotp(r.Context(), principal, targetID, req.Code, req.Password)
	if err != nil {
		helpers.Error(w, err)
		return
	}
	helpers.Success(w, http.StatusOK, "TOTP disabled", user.DTO())
}

func joinRoles(roles []uuid.UUID) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ",")
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
