package auth

import (
	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/models"
)

// Authorization predicates. These are not middleware: every handler
// calls the predicate it needs after resolving the principal.

// IsAdmin reports whether the principal is a user principal with
// admin membership.
func IsAdmin(p *Principal) bool {
	return p.IsUser() && p.User.IsAdmin()
}

// IsSystem reports whether the principal is the system user itself.
func IsSystem(p *Principal) bool {
	return p.IsUser() && p.User.IsSystem()
}

// CanActOnUser authorizes an operation against a target user. A user
// principal passes when it is the target or an admin. A token
// principal passes only when its subject is the target and its scope
// grants the action on the user resource.
func CanActOnUser(p *Principal, target uuid.UUID, action models.ScopeAction) bool {
	if p.IsUser() {
		return p.UserID == target || p.User.IsAdmin()
	}
	return p.UserID == target && p.Token.Scope.Allows(models.ResourceUser, action)
}

// CanActOnResource authorizes a non-user-target operation. A user
// principal passes when admin; a token principal when its scope
// grants the action on the resource.
func CanActOnResource(p *Principal, resource models.ScopeResource, action models.ScopeAction) bool {
	if p.IsUser() {
		return p.User.IsAdmin()
	}
	return p.Token.Scope.Allows(resource, action)
}

// CanAccessOwned authorizes an operation on an entity owned by a
// user, allowing the owner or an admin for user principals and
// subject+scope for token principals.
func CanAccessOwned(p *Principal, owner uuid.UUID, resource models.ScopeResource, action models.ScopeAction) bool {
	if p.IsUser() {
		return p.UserID == owner || p.User.IsAdmin()
	}
	return p.UserID == owner && p.Token.Scope.Allows(resource, action)
}
