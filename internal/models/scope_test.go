package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Scope
		wantErr bool
	}{
		{name: "user read", raw: "user:read", want: Scope{Resource: ResourceUser, Action: ActionRead}},
		{name: "wildcard action", raw: "audit-logs:*", want: Scope{Resource: ResourceAuditLogs, Action: ActionAll}},
		{name: "oauth applications", raw: "oauth-applications:delete", want: Scope{Resource: ResourceOAuthApplications, Action: ActionDelete}},
		{name: "missing separator", raw: "userread", wantErr: true},
		{name: "unknown resource", raw: "widgets:read", wantErr: true},
		{name: "unknown action", raw: "user:destroy", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScope(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.raw, got.String())
		})
	}
}

func TestParseScopes_FailsOnFirstInvalid(t *testing.T) {
	_, err := ParseScopes([]string{"user:read", "nope:read"})
	require.Error(t, err)

	scopes, err := ParseScopes([]string{"user:read", "roles:*"})
	require.NoError(t, err)
	assert.Len(t, scopes, 2)
}

func TestScopeList_Has_IsExact(t *testing.T) {
	list, err := ParseScopes([]string{"user:*"})
	require.NoError(t, err)

	// The wildcard is not expanded by Has; only Allows interprets it.
	assert.False(t, list.Has(Scope{Resource: ResourceUser, Action: ActionRead}))
	assert.True(t, list.Has(Scope{Resource: ResourceUser, Action: ActionAll}))
}

func TestScopeList_Allows(t *testing.T) {
	exact, err := ParseScopes([]string{"user:read"})
	require.NoError(t, err)
	assert.True(t, exact.Allows(ResourceUser, ActionRead))
	assert.False(t, exact.Allows(ResourceUser, ActionUpdate))
	assert.False(t, exact.Allows(ResourceRoles, ActionRead))

	wildcard, err := ParseScopes([]string{"connections:*"})
	require.NoError(t, err)
	assert.True(t, wildcard.Allows(ResourceConnections, ActionRead))
	assert.True(t, wildcard.Allows(ResourceConnections, ActionDelete))
	assert.False(t, wildcard.Allows(ResourceUser, ActionRead))
}

func TestScope_UnmarshalText(t *testing.T) {
	var s Scope
	require.NoError(t, s.UnmarshalText([]byte("roles:read")))
	assert.Equal(t, ResourceRoles, s.Resource)

	require.Error(t, s.UnmarshalText([]byte("roles:explode")))
}

func TestScopeList_Join(t *testing.T) {
	list, err := ParseScopes([]string{"user:read", "roles:*"})
	require.NoError(t, err)
	assert.Equal(t, "user:read,roles:*", list.Join())
	assert.Equal(t, []string{"user:read", "roles:*"}, list.Strings())
}
