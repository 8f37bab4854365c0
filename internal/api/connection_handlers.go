package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/api/helpers"
	"github.com/veldtec/authgate/internal/api/middleware"
	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/auth"
	"github.com/veldtec/authgate/internal/models"
	"github.com/veldtec/authgate/internal/storage"
)

// ConnectionHandler surfaces the OAuth tokens a user has granted,
// joined with their applications.
type ConnectionHandler struct {
	store *storage.Store
}

func NewConnectionHandler(store *storage.Store) *ConnectionHandler {
	return &ConnectionHandler{store: store}
}

type connectionDTO struct {
	Application models.OAuthApplicationDTO `json:"application"`
	Scope       []string                   `json:"scope"`
	ExpiresIn   int64                      `json:"expiresIn"`
	CreatedAt   time.Time                  `json:"createdAt"`
}

// List handles GET /users/<id>/connections and GET /connections/<id>
// with a user id.
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}
	if !auth.CanAccessOwned(principal, userID, models.ResourceConnections, models.ActionRead) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	tokens, err := h.store.ListTokensByUser(r.Context(), userID)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}

	connections := make([]connectionDTO, 0, len(tokens))
	for _, token := range tokens {
		app, err := h.store.GetApplicationByID(r.Context(), token.ApplicationID)
		if err != nil {
			helpers.Error(w, apperrors.Database(err))
			return
		}
		if app == nil {
			// Token outlived its application; skip rather than fail the
			// whole listing.
			continue
		}
		connections = append(connections, connectionDTO{
			Application: app.DTO(),
			Scope:       token.Scope.Strings(),
			ExpiresIn:   token.ExpiresIn,
			CreatedAt:   token.CreatedAt,
		})
	}
	helpers.Success(w, http.StatusOK, "Found connections", connections)
}

// Delete handles DELETE /connections/<id> where id is the application
// id; it severs the caller's grant by deleting every matching token.
func (h *ConnectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := middleware.MustGetPrincipal(r.Context())
	applicationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.Error(w, apperrors.InvalidUUID(chi.URLParam(r, "id")))
		return
	}
	if !auth.CanAccessOwned(principal, principal.UserID, models.ResourceConnections, models.ActionDelete) {
		helpers.Error(w, apperrors.Forbidden("Missing permissions!"))
		return
	}

	deleted, err := h.store.DeleteTokensByUserAndApplication(r.Context(), principal.UserID, applicationID)
	if err != nil {
		helpers.Error(w, apperrors.Database(err))
		return
	}
	if deleted == 0 {
		helpers.Error(w, apperrors.NotFound("You are not connected to that application!"))
		return
	}
	helpers.Success(w, http.StatusOK, "Connection removed", nil)
}
