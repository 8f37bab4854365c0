package middleware

import (
	"context"
	"fmt"

	"github.com/veldtec/authgate/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// PrincipalKey carries the resolved caller identity.
const PrincipalKey contextKey = "principal"

// GetPrincipal safely extracts the principal from context.
// Returns an error if the value is missing or wrong type.
func GetPrincipal(ctx context.Context) (*auth.Principal, error) {
	val := ctx.Value(PrincipalKey)
	if val == nil {
		return nil, fmt.Errorf("principal not found in context")
	}
	principal, ok := val.(*auth.Principal)
	if !ok {
		return nil, fmt.Errorf("principal has wrong type: %T", val)
	}
	return principal, nil
}

// MustGetPrincipal extracts the principal and panics if not found.
// Use only behind the RequireAuth middleware.
func MustGetPrincipal(ctx context.Context) *auth.Principal {
	principal, err := GetPrincipal(ctx)
	if err != nil {
		panic(fmt.Sprintf("CRITICAL: %v", err))
	}
	return principal
}
