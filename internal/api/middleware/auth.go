package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/veldtec/authgate/internal/api/helpers"
	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/auth"
)

// RequireAuth resolves the Authorization header to a Principal and
// injects it into the request context. Handlers behind it make their
// own policy decisions; this only establishes identity.
func RequireAuth(resolver *auth.PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				helpers.Error(w, apperrors.Unauthorized("Authorization header required!"))
				return
			}

			principal, err := resolver.Resolve(r.Context(), authHeader)
			if err != nil {
				slog.Warn("principal_resolution_failed", "error", err, "ip", r.RemoteAddr)
				helpers.Error(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			setSentryUser(ctx, principal, r.RemoteAddr)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// setSentryUser tags the Sentry scope with the resolved identity so
// crash reports carry the caller.
func setSentryUser(ctx context.Context, principal *auth.Principal, ip string) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		return
	}
	user := sentry.User{ID: principal.UserID.String(), IPAddress: ip}
	if principal.IsUser() {
		user.Email = principal.User.Email
	}
	hub.Scope().SetUser(user)
}
