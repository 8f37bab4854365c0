package api

import (
	"net/http"

	"github.com/veldtec/authgate/internal/api/helpers"
	"github.com/veldtec/authgate/internal/api/middleware"
	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/audit"
	"github.com/veldtec/authgate/internal/auth"
	"github.com/veldtec/authgate/internal/models"
	"github.com/veldtec/authgate/internal/storage"
)

// SettingsHandler serves the global toggle singleton. Reads come from
// the in-process cache; writes go store first, then swap the cache.
type SettingsHandler struct {
	store *storage.Store
	cache *storage.SettingsCache
	audit audit.Logger
}

func NewSettingsHandler(store *storage.Store, cache *storage.SettingsCache, auditLogger audit.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, cache: cache, audit: auditLogger}
}

// Get handles GET /settings. Any principal may read.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	helpers.Success(w, http.StatusOK, "Found settings", h.cache.Get())
}

type updateSettingsRequest struct {
	OpenRegistration       *bool `json:"openRegistration"`
	AllowOAuthAppsForUsers *bool `json:"allowOauthAppsForUsers"`
}

// Update handles PATCH /admin/settings. System user only; the audit
// entry lands in the system trail.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !auth.IsSystem(principal) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	var req updateSettingsRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}

	settings := h.cache.Get()
	diff := models.NewDiff()
	if req.OpenRegistration != nil {
		if diff.Compare("openRegistration", boolString(settings.OpenRegistration), boolString(*req.OpenRegistration)) {
			settings.OpenRegistration = *req.OpenRegistration
		}
	}
	if req.AllowOAuthAppsForUsers != nil {
		if diff.Compare("allowOauthAppsForUsers", boolString(settings.AllowOAuthAppsForUsers), boolString(*req.AllowOAuthAppsForUsers)) {
			settings.AllowOAuthAppsForUsers = *req.AllowOAuthAppsForUsers
		}
	}

	if !diff.Modified() {
		helpers.Error(w, apperrors.NoUpdatesApplied())
		return
	}

	if err := h.store.UpsertSettings(r.Context(), settings); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	h.cache.Set(settings)

	h.audit.Log(r.Context(), models.NewAuditLog(settings.ID.String(), models.AuditEntitySettings, models.AuditActionUpdate, "Settings updated.", principal.UserID, diff.OldValues(), diff.NewValues()))

	helpers.Success(w, http.StatusOK, "Settings updated", settings)
}
