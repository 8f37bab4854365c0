package api

import (
	"log/slog"
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/veldtec/authgate/internal/api/helpers"
	custommiddleware "github.com/veldtec/authgate/internal/api/middleware"
	"github.com/veldtec/authgate/internal/audit"
	"github.com/veldtec/authgate/internal/auth"
	"github.com/veldtec/authgate/internal/oauth"
	"github.com/veldtec/authgate/internal/storage"
)

// Server bundles the router with the services the handlers close over.
type Server struct {
	Router *chi.Mux
	Logger *slog.Logger
}

// Deps are the constructed services the router wires into handlers.
type Deps struct {
	Store    *storage.Store
	Settings *storage.SettingsCache
	Auth     *auth.Service
	Passkeys *auth.PasskeyService
	OAuth    *oauth.Engine
	Resolver *auth.PrincipalResolver
	Hasher   auth.PasswordHasher
	Audit    audit.Logger
}

func NewServer(deps Deps) *Server {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	// Sentry before recovery so repanics are captured
	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic: true,
	})
	r.Use(sentryHandler.Handle)

	r.Use(custommiddleware.RequestLogger)
	r.Use(custommiddleware.PanicRecovery)
	r.Use(custommiddleware.CORS)

	requireAuth := custommiddleware.RequireAuth(deps.Resolver)

	authHandler := NewAuthHandler(deps.Auth, deps.Resolver, deps.Settings)
	passkeyHandler := NewPasskeyHandler(deps.Passkeys, deps.Store, deps.Audit)
	userHandler := NewUserHandler(deps.Store, deps.Auth, deps.Hasher, deps.Audit)
	roleHandler := NewRoleHandler(deps.Store, deps.Audit)
	appHandler := NewOAuthApplicationHandler(deps.Store, deps.Settings, deps.Audit)
	oauthHandler := NewOAuthHandler(deps.OAuth)
	connectionHandler := NewConnectionHandler(deps.Store)
	registrationHandler := NewRegistrationTokenHandler(deps.Store, deps.Audit)
	auditHandler := NewAuditLogHandler(deps.Store)
	settingsHandler := NewSettingsHandler(deps.Store, deps.Settings, deps.Audit)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			helpers.Success(w, http.StatusOK, "authgate is running", nil)
		})

		// Public routes
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/mfa", authHandler.VerifyMfa)
		r.Get("/auth/passkeys/authenticate/start", passkeyHandler.BeginAuthentication)
		r.Post("/auth/passkeys/authenticate/finish", passkeyHandler.FinishAuthentication)

		// Registration with an optional author bearer
		r.Post("/users", authHandler.Register)

		// RFC 6749 token endpoints authenticate by client credentials
		r.Post("/oauth/token", oauthHandler.Token)
		r.Post("/oauth/token/json", oauthHandler.TokenJSON)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/users", userHandler.List)
			r.Get("/users/@me", userHandler.Me)
			r.Get("/users/@me/plain", userHandler.MePlain)
			r.Get("/users/{id}", userHandler.Get)
			r.Patch("/users/{id}", userHandler.Update)
			r.Delete("/users/{id}", userHandler.Delete)
			r.Post("/users/{id}/mfa/totp/enable", userHandler.EnableTotp)
			r.Post("/users/{id}/mfa/totp/disable", userHandler.DisableTotp)
			r.Get("/users/{id}/connections", connectionHandler.List)
			r.Get("/users/{id}/audit-logs", auditHandler.ListByAuthor)
			r.Get("/users/{id}/passkeys", passkeyHandler.ListByUser)

			r.Get("/passkeys", passkeyHandler.List)
			r.Get("/passkeys/register/start", passkeyHandler.BeginRegistration)
			r.Post("/passkeys/register/finish", passkeyHandler.FinishRegistration)
			r.Get("/passkeys/{id}", passkeyHandler.Get)
			r.Patch("/passkeys/{id}", passkeyHandler.Update)
			r.Delete("/passkeys/{id}", passkeyHandler.Delete)

			r.Get("/roles", roleHandler.List)
			r.Post("/roles", roleHandler.Create)
			r.Get("/roles/{id}", roleHandler.Get)
			r.Patch("/roles/{id}", roleHandler.Update)
			r.Delete("/roles/{id}", roleHandler.Delete)

			r.Get("/oauth-applications", appHandler.List)
			r.Post("/oauth-applications", appHandler.Create)
			r.Get("/oauth-applications/{id}", appHandler.Get)
			r.Patch("/oauth-applications/{id}", appHandler.Update)
			r.Delete("/oauth-applications/{id}", appHandler.Delete)

			r.Post("/oauth/authorize", oauthHandler.Authorize)
			r.Post("/oauth/token/revoke", oauthHandler.Revoke)

			r.Get("/connections/{id}", connectionHandler.List)
			r.Delete("/connections/{id}", connectionHandler.Delete)

			r.Get("/registration-tokens", registrationHandler.List)
			r.Post("/registration-tokens", registrationHandler.Create)
			r.Get("/registration-tokens/{id}", registrationHandler.Get)
			r.Patch("/registration-tokens/{id}", registrationHandler.Update)
			r.Delete("/registration-tokens/{id}", registrationHandler.Delete)

			r.Get("/audit-logs", auditHandler.List)
			r.Get("/audit-logs/{type}", auditHandler.ListByType)
			r.Get("/audit-logs/{type}/{id}", auditHandler.Get)
			r.Get("/audit-logs/{type}/entity/{entityId}", auditHandler.ListByEntity)

			r.Get("/settings", settingsHandler.Get)
			r.Patch("/admin/settings", settingsHandler.Update)
		})
	})

	return &Server{
		Router: r,
		Logger: slog.Default(),
	}
}
