package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthToken_Expired(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := OAuthToken{CreatedAt: created, ExpiresIn: 60}

	assert.False(t, token.Expired(created))
	assert.False(t, token.Expired(created.Add(60*time.Second)))
	assert.True(t, token.Expired(created.Add(60*time.Second+time.Millisecond)))
}

func TestOAuthToken_CoversScope(t *testing.T) {
	parse := func(raw ...string) ScopeList {
		list, err := ParseScopes(raw)
		require.NoError(t, err)
		return list
	}

	token := OAuthToken{Scope: parse("user:read", "roles:read", "connections:read")}

	// Strict superset with full membership.
	assert.True(t, token.CoversScope(parse("user:read", "roles:read")))

	// Equal length is never covered, even when identical.
	assert.False(t, token.CoversScope(parse("user:read", "roles:read", "connections:read")))

	// Longer list but missing membership.
	assert.False(t, token.CoversScope(parse("user:read", "audit-logs:read")))

	assert.True(t, token.CoversScope(parse("user:read")))
	assert.False(t, token.CoversScope(nil))

	empty := OAuthToken{}
	assert.False(t, empty.CoversScope(parse("user:read")))
}
