package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtec/authgate/internal/models"
)

func userPrincipal(user *models.User) *Principal {
	return &Principal{UserID: user.ID, User: user}
}

func tokenPrincipal(userID uuid.UUID, scopes ...string) *Principal {
	list, err := models.ParseScopes(scopes)
	if err != nil {
		panic(err)
	}
	return &Principal{UserID: userID, Token: &models.OAuthToken{UserID: userID, Scope: list}}
}

func TestIsAdminAndIsSystem(t *testing.T) {
	system := userPrincipal(&models.User{ID: models.SystemUserID})
	admin := userPrincipal(&models.User{ID: uuid.New(), Roles: []uuid.UUID{models.AdminRoleID, models.DefaultRoleID}})
	regular := userPrincipal(&models.User{ID: uuid.New(), Roles: []uuid.UUID{models.DefaultRoleID}})
	token := tokenPrincipal(uuid.New(), "user:*")

	assert.True(t, IsAdmin(system))
	assert.True(t, IsSystem(system))

	assert.True(t, IsAdmin(admin))
	assert.False(t, IsSystem(admin))

	assert.False(t, IsAdmin(regular))
	assert.False(t, IsSystem(regular))

	assert.False(t, IsAdmin(token))
	assert.False(t, IsSystem(token))
}

func TestCanActOnUser(t *testing.T) {
	targetID := uuid.New()

	self := userPrincipal(&models.User{ID: targetID})
	admin := userPrincipal(&models.User{ID: uuid.New(), Roles: []uuid.UUID{models.AdminRoleID}})
	other := userPrincipal(&models.User{ID: uuid.New()})

	assert.True(t, CanActOnUser(self, targetID, models.ActionRead))
	assert.True(t, CanActOnUser(admin, targetID, models.ActionDelete))
	assert.False(t, CanActOnUser(other, targetID, models.ActionRead))

	// Token principals need to be the subject AND carry the scope.
	scoped := tokenPrincipal(targetID, "user:read")
	wildcard := tokenPrincipal(targetID, "user:*")
	wrongSubject := tokenPrincipal(uuid.New(), "user:read")
	wrongScope := tokenPrincipal(targetID, "roles:read")

	assert.True(t, CanActOnUser(scoped, targetID, models.ActionRead))
	assert.False(t, CanActOnUser(scoped, targetID, models.ActionUpdate))
	assert.True(t, CanActOnUser(wildcard, targetID, models.ActionUpdate))
	assert.False(t, CanActOnUser(wrongSubject, targetID, models.ActionRead))
	assert.False(t, CanActOnUser(wrongScope, targetID, models.ActionRead))
}

func TestCanActOnResource(t *testing.T) {
	admin := userPrincipal(&models.User{ID: uuid.New(), Roles: []uuid.UUID{models.AdminRoleID}})
	regular := userPrincipal(&models.User{ID: uuid.New()})
	scoped := tokenPrincipal(uuid.New(), "roles:read")

	assert.True(t, CanActOnResource(admin, models.ResourceRoles, models.ActionDelete))
	assert.False(t, CanActOnResource(regular, models.ResourceRoles, models.ActionRead))
	assert.True(t, CanActOnResource(scoped, models.ResourceRoles, models.ActionRead))
	assert.False(t, CanActOnResource(scoped, models.ResourceRoles, models.ActionDelete))
}

func TestCanAccessOwned(t *testing.T) {
	ownerID := uuid.New()

	owner := userPrincipal(&models.User{ID: ownerID})
	admin := userPrincipal(&models.User{ID: uuid.New(), Roles: []uuid.UUID{models.AdminRoleID}})
	stranger := userPrincipal(&models.User{ID: uuid.New()})

	assert.True(t, CanAccessOwned(owner, ownerID, models.ResourceConnections, models.ActionRead))
	assert.True(t, CanAccessOwned(admin, ownerID, models.ResourceConnections, models.ActionRead))
	assert.False(t, CanAccessOwned(stranger, ownerID, models.ResourceConnections, models.ActionRead))

	subjectToken := tokenPrincipal(ownerID, "connections:read")
	foreignToken := tokenPrincipal(uuid.New(), "connections:read")
	require.True(t, CanAccessOwned(subjectToken, ownerID, models.ResourceConnections, models.ActionRead))
	assert.False(t, CanAccessOwned(foreignToken, ownerID, models.ResourceConnections, models.ActionRead))
}
