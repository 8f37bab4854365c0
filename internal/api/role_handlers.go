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

// RoleHandler serves role CRUD. Reads allow scoped tokens; writes are
// admin only. System roles are immutable.
type RoleHandler struct {
	store *storage.Store
	audit audit.Logger
}

func NewRoleHandler(store *storage.Store, auditLogger audit.Logger) *RoleHandler {
	return &RoleHandler{store: store, audit: auditLogger}
}

// List handles GET /roles.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !canReadRoles(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	helpers.Success(w, http.StatusOK, "Found roles", roles)
}

// Get handles GET /roles/<id>.
func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !canReadRoles(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}

	role, err := h.store.GetRoleByID(r.Context(), id)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if role == nil {
		helpers.Error(w, apperrors.NotFound("Role not found!"))
		return
	}
	helpers.Success(w, http.StatusOK, "Found role", role)
}

type createRoleRequest struct {
	Name string `json:"name"`
}

func (req *createRoleRequest) Validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.Validation("Role name must not be empty!")
	}
	return nil
}

// Create handles POST /roles.
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsAdmin(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	var req createRoleRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		slog.Warn("role_create_decode_failed", "error", err)
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}
	if err := req.Validate(); err != nil {
		helpers.Error(w, err)
		return
	}
	name := strings.TrimSpace(req.Name)

	existing, err := h.store.GetRoleByName(r.Context(), name)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if existing != nil {
		helpers.Error(w, apperrors.Validation("Role with this name already exists!"))
		return
	}

	role := &models.Role{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: timeNow().UTC(),
	}
	if err := h.store.CreateRole(r.Context(), role); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}

	diff := models.NewDiff()
	diff.Set("name", "", name)
	h.audit.Log(r.Context(), models.NewAuditLog(role.ID.String(), models.AuditEntityRole, models.AuditActionCreate, "Role created.", principal.UserID, nil, diff.NewValues()))

	helpers.Success(w, http.StatusCreated, "Role created", role)
}

type updateRoleRequest struct {
	Name *string `json:"name"`
}

// Update handles PATCH /roles/<id>.
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req updateRoleRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}

	role, err := h.store.GetRoleByID(r.Context(), id)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if role == nil {
		helpers.Error(w, apperrors.NotFound("Role not found!"))
		return
	}
	if role.System {
		helpers.Error(w, apperrors.Forbidden("System roles cannot be modified!"))
		return
	}

	diff := models.NewDiff()
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			helpers.Error(w, apperrors.Validation("Role name must not be empty!"))
			return
		}
		if name != role.Name {
			existing, err := h.store.GetRoleByName(r.Context(), name)
			if err != nil {
				helpers.Error(w, apperrors.Database(err))
				return
			}
			if existing != nil {
				helpers.Error(w, apperrors.Validation("Role with this name already exists!"))
				return
			}
		}
		if diff.Compare("name", role.Name, name) {
			role.Name = name
		}
	}

	if !diff.Modified() {
		helpers.Error(w, apperrors.NoUpdatesApplied())
		return
	}

	if err := h.store.UpdateRole(r.Context(), role); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	h.audit.Log(r.Context(), models.NewAuditLog(role.ID.String(), models.AuditEntityRole, models.AuditActionUpdate, "Role updated.", principal.UserID, diff.OldValues(), diff.NewValues()))

	helpers.Success(w, http.StatusOK, "Role updated", role)
}

// Delete handles DELETE /roles/<id>. The store strips the role from
// every user's role array in the same transaction.
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	role, err := h.store.GetRoleByID(r.Context(), id)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if role == nil {
		helpers.Error(w, apperrors.NotFound("Role not found!"))
		return
	}
	if role.System {
		helpers.Error(w, apperrors.Forbidden("System roles cannot be deleted!"))
		return
	}

	if err := h.store.DeleteRole(r.Context(), id); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	h.audit.Log(r.Context(), models.NewAuditLog(id.String(), models.AuditEntityRole, models.AuditActionDelete, "Role deleted.", principal.UserID, nil, nil))

	helpers.Success(w, http.StatusOK, "Role deleted", nil)
}

func canReadRoles(p *auth.Principal) bool {
	if p.IsUser() {
		return p.User.IsAdmin()
	}
	return p.Token.Scope.Allows(models.ResourceRoles, models.ActionRead)
}
