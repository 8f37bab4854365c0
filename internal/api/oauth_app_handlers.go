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

// OAuthApplicationHandler serves client registration CRUD. The client
// secret leaves the server exactly once, in the create response.
type OAuthApplicationHandler struct {
	store    *storage.Store
	settings *storage.SettingsCache
	audit    audit.Logger
}

func NewOAuthApplicationHandler(store *storage.Store, settings *storage.SettingsCache, auditLogger audit.Logger) *OAuthApplicationHandler {
	return &OAuthApplicationHandler{store: store, settings: settings, audit: auditLogger}
}

// List handles GET /oauth-applications. Admins see everything, users
// see their own, tokens need a read scope on the subject's apps.
func (h *OAuthApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())

	if auth.IsAdmin(principal) {
		apps, err := h.store.ListApplications(r.Context())
		if err != nil {
			helpers.Error(w, apperrors.Database(err))
			return
		}
		helpers.Success(w, http.StatusOK, "Found applications", applicationDTOs(apps))
		return
	}

	if !auth.CanAccessOwned(principal, principal.UserID, models.ResourceOAuthApplications, models.ActionRead) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}
	apps, err := h.store.ListApplicationsByOwner(r.Context(), principal.UserID)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	helpers.Success(w, http.StatusOK, "Found applications", applicationDTOs(apps))
}

// Get handles GET /oauth-applications/<id>.
func (h *OAuthApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}

	app, err := h.store.GetApplicationByID(r.Context(), id)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if app == nil {
		helpers.Error(w, apperrors.NotFound("Application not found!"))
		return
	}
	if !auth.CanAccessOwned(principal, app.OwnerID, models.ResourceOAuthApplications, models.ActionRead) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}
	helpers.Success(w, http.StatusOK, "Found application", app.DTO())
}

type createApplicationRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	RedirectURIs []string `json:"redirectUris"`
}

func (req *createApplicationRequest) Validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.Validation("Application name must not be empty!")
	}
	if len(req.RedirectURIs) == 0 {
		return apperrors.Validation("At least one redirect URI is required!")
	}
	for _, uri := range req.RedirectURIs {
		if strings.TrimSpace(uri) == "" {
			return apperrors.Validation("Redirect URIs must not be empty!")
		}
	}
	return nil
}

// Create handles POST /oauth-applications. Non-admin users need the
// settings switch for user-owned applications.
func (h *OAuthApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	if !principal.IsUser() {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}
	if !auth.IsAdmin(principal) && !h.settings.Get().AllowOAuthAppsForUsers {
		helpers.Error(w, apperrors.Forbidden("Users cannot create OAuth applications!"))
		return
	}

	var req createApplicationRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		slog.Warn("application_create_decode_failed", "error", err)
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}
	if err := req.Validate(); err != nil {
		helpers.Error(w, err)
		return
	}

	secret, err := auth.NewClientSecret()
	if err != nil {
		helpers.Error(w, apperrors.Internal("Failed to generate client secret", err))
		return
	}

	app := &models.OAuthApplication{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		RedirectURIs: req.RedirectURIs,
		Secret:       secret,
		OwnerID:      principal.UserID,
		CreatedAt:    timeNow().UTC(),
	}
	if err := h.store.CreateApplication(r.Context(), app); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}

	diff := models.NewDiff()
	diff.Set("name", "", app.Name)
	h.audit.Log(r.Context(), models.NewAuditLog(app.ID.String(), models.AuditEntityOAuthApplication, models.AuditActionCreate, "OAuth application created.", principal.UserID, nil, diff.NewValues()))

	helpers.Success(w, http.StatusCreated, "Application created", models.OAuthApplicationCreatedDTO{
		OAuthApplicationDTO: app.DTO(),
		Secret:              secret,
	})
}

type updateApplicationRequest struct {
	Name         *string   `json:"name"`
	Description  *string   `json:"description"`
	RedirectURIs *[]string `json:"redirectUris"`
}

// Update handles PATCH /oauth-applications/<id>.
func (h *OAuthApplicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}

	var req updateApplicationRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.Error(w, apperrors.Validation("Invalid request body!"))
		return
	}

	app, err := h.store.GetApplicationByID(r.Context(), id)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if app == nil {
		helpers.Error(w, apperrors.NotFound("Application not found!"))
		return
	}
	if !principal.IsUser() || (principal.UserID != app.OwnerID && !auth.IsAdmin(principal)) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	diff := models.NewDiff()
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			helpers.Error(w, apperrors.Validation("Application name must not be empty!"))
			return
		}
		if diff.Compare("name", app.Name, name) {
			app.Name = name
		}
	}
	if req.Description != nil {
		if diff.Compare("description", app.Description, strings.TrimSpace(*req.Description)) {
			app.Description = strings.TrimSpace(*req.Description)
		}
	}
	if req.RedirectURIs != nil {
		uris := *req.RedirectURIs
		if len(uris) == 0 {
			helpers.Error(w, apperrors.Validation("At least one redirect URI is required!"))
			return
		}
		if diff.Compare("redirectUris", strings.Join(app.RedirectURIs, ","), strings.Join(uris, ",")) {
			app.RedirectURIs = uris
		}
	}

	if !diff.Modified() {
		helpers.Error(w, apperrors.NoUpdatesApplied())
		return
	}

	if err := h.store.UpdateApplication(r.Context(), app); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	h.audit.Log(r.Context(), models.NewAuditLog(app.ID.String(), models.AuditEntityOAuthApplication, models.AuditActionUpdate, "OAuth application updated.", principal.UserID, diff.OldValues(), diff.NewValues()))

	helpers.Success(w, http.StatusOK, "Application updated", app.DTO())
}

// Delete handles DELETE /oauth-applications/<id>. Issued tokens go
// with the application in one transaction.
func (h *OAuthApplicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}

	app, err := h.store.GetApplicationByID(r.Context(), id)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if app == nil {
		helpers.Error(w, apperrors.NotFound("Application not found!"))
		return
	}
	if !principal.IsUser() || (principal.UserID != app.OwnerID && !auth.IsAdmin(principal)) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	if err := h.store.DeleteApplication(r.Context(), id); err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	h.audit.Log(r.Context(), models.NewAuditLog(id.String(), models.AuditEntityOAuthApplication, models.AuditActionDelete, "OAuth application deleted.", principal.UserID, nil, nil))

	helpers.Success(w, http.StatusOK, "Application deleted", nil)
}

func applicationDTOs(apps []models.OAuthApplication) []models.OAuthApplicationDTO {
	dtos := make([]models.OAuthApplicationDTO, 0, len(apps))
	for i := range apps {
		dtos = append(dtos, apps[i].DTO())
	}
	return dtos
}
