package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRegistrationToken_Exhausted(t *testing.T) {
	token := RegistrationToken{MaxUses: 2}
	assert.False(t, token.Exhausted())

	token.Uses = []uuid.UUID{uuid.New()}
	assert.False(t, token.Exhausted())

	token.Uses = append(token.Uses, uuid.New())
	assert.True(t, token.Exhausted())
}

func TestRegistrationToken_Expired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// No expiry window configured means the token never expires.
	forever := RegistrationToken{}
	assert.False(t, forever.Expired(now))

	window := int64(3600)
	from := now.Add(-time.Hour)
	token := RegistrationToken{ExpiresIn: &window, ExpiresFrom: &from}
	assert.False(t, token.Expired(now))
	assert.True(t, token.Expired(now.Add(time.Millisecond)))
}

func TestRegistrationToken_UsedBy(t *testing.T) {
	userID := uuid.New()
	token := RegistrationToken{Uses: []uuid.UUID{uuid.New(), userID}}
	assert.True(t, token.UsedBy(userID))
	assert.False(t, token.UsedBy(uuid.New()))
}
