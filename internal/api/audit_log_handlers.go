package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/api/helpers"
	"github.com/veldtec/authgate/internal/api/middleware"
	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/auth"
	"github.com/veldtec/authgate/internal/models"
	"github.com/veldtec/authgate/internal/storage"
)

// AuditLogHandler serves read access to the append-only trails.
type AuditLogHandler struct {
	store *storage.Store
}

func NewAuditLogHandler(store *storage.Store) *AuditLogHandler {
	return &AuditLogHandler{store: store}
}

// List handles GET /audit-logs, merging every trail.
func (h *AuditLogHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsAdmin(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	logs, err := h.store.ListAuditLogs(r.Context())
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	helpers.Success(w, http.StatusOK, "Found audit logs", logs)
}

// ListByType handles GET /audit-logs/<type>.
func (h *AuditLogHandler) ListByType(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsAdmin(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}
	entityType, ok := models.ParseAuditLogEntityType(chi.URLParam(r, "type"))
	if !ok {
		helpers.Error(w, apperrors.Validation("Unknown audit log type!"))
		return
	}

	logs, err := h.store.ListAuditLogsByType(r.Context(), entityType)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	helpers.Success(w, http.StatusOK, "Found audit logs", logs)
}

// Get handles GET /audit-logs/<type>/<id>.
func (h *AuditLogHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsAdmin(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}
	entityType, ok := models.ParseAuditLogEntityType(chi.URLParam(r, "type"))
	if !ok {
		helpers.Error(w, apperrors.Validation("Unknown audit log type!"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}

	entry, err := h.store.GetAuditLogByID(r.Context(), entityType, id)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if entry == nil {
		helpers.Error(w, apperrors.NotFound("Audit log not found!"))
		return
	}
	helpers.Success(w, http.StatusOK, "Found audit log", entry)
}

// ListByEntity handles GET /audit-logs/<type>/entity/<entityId>. The
// entity id is a string because passkey ids are not UUIDs.
func (h *AuditLogHandler) ListByEntity(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsAdmin(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}
	entityType, ok := models.ParseAuditLogEntityType(chi.URLParam(r, "type"))
	if !ok {
		helpers.Error(w, apperrors.Validation("Unknown audit log type!"))
		return
	}

	logs, err := h.store.ListAuditLogsByEntity(r.Context(), entityType, chi.URLParam(r, "entityId"))
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	helpers.Success(w, http.StatusOK, "Found audit logs", logs)
}

// ListByAuthor handles GET /users/<id>/audit-logs, merging every trail
// the user authored. Self access is allowed.
func (h *AuditLogHandler) ListByAuthor(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}
	if !auth.CanAccessOwned(principal, userID, models.ResourceAuditLogs, models.ActionRead) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	logs, err := h.store.ListAuditLogsByAuthor(r.Context(), userID)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	helpers.Success(w, http.StatusOK, "Found audit logs", logs)
}
