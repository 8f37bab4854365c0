package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{InvalidUUID("nope"), http.StatusBadRequest},
		{Validation("bad input"), http.StatusBadRequest},
		{InvalidToken("bad token"), http.StatusUnauthorized},
		{InvalidCredentials(), http.StatusUnauthorized},
		{InvalidMfaCode(), http.StatusUnauthorized},
		{MfaRequired("second factor needed"), http.StatusUnauthorized},
		{Unauthorized("no header"), http.StatusUnauthorized},
		{Forbidden("not yours"), http.StatusForbidden},
		{UserDisabled(), http.StatusForbidden},
		{SystemUserModification(), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{NoUpdatesApplied(), http.StatusOK},
		{Database(errors.New("down")), http.StatusInternalServerError},
		{Internal("boom", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.Status(), tt.err.Message)
	}
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "Invalid UUID: nope", InvalidUUID("nope").Error())

	wrapped := Database(errors.New("connection refused"))
	assert.Equal(t, "Database error: connection refused", wrapped.Error())
}

func TestFrom(t *testing.T) {
	original := Forbidden("not yours")
	assert.Same(t, original, From(original))
	assert.Same(t, original, From(fmt.Errorf("handler: %w", original)))

	raw := errors.New("pq: relation does not exist")
	converted := From(raw)
	require.NotNil(t, converted)
	assert.Equal(t, KindInternal, converted.Kind)
	// The raw text stays on Err, never on Message.
	assert.Equal(t, "Internal server error", converted.Message)
	assert.ErrorIs(t, converted, raw)
}

func TestIsKind(t *testing.T) {
	err := NotFound("missing")
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindForbidden))

	assert.True(t, IsKind(fmt.Errorf("wrap: %w", err), KindNotFound))
	assert.False(t, IsKind(errors.New("plain"), KindNotFound))
	assert.False(t, IsKind(nil, KindNotFound))
}
