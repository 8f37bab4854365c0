package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgon2idHasher_Roundtrip(t *testing.T) {
	hasher := NewArgon2idHasher()

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, hasher.Compare(hash, "correct horse battery staple"))
}

func TestArgon2idHasher_Mismatch(t *testing.T) {
	hasher := NewArgon2idHasher()

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)

	err = hasher.Compare(hash, "incorrect horse")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
}

func TestArgon2idHasher_UniqueSalts(t *testing.T) {
	hasher := NewArgon2idHasher()

	first, err := hasher.Hash("same password")
	require.NoError(t, err)
	second, err := hasher.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestArgon2idHasher_MalformedHash(t *testing.T) {
	hasher := NewArgon2idHasher()

	for _, hash := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=65536,t=3,p=4$onlysalt",
		"$bcrypt$whatever",
	} {
		err := hasher.Compare(hash, "anything")
		assert.Error(t, err, "hash %q", hash)
		assert.NotErrorIs(t, err, ErrPasswordMismatch)
	}
}
