package helpers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtec/authgate/internal/apperrors"
)

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusCreated, "User created", map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusCreated), body["status"])
	assert.Equal(t, "User created", body["message"])
	assert.Equal(t, map[string]any{"id": "abc"}, body["data"])
}

func TestSuccess_OmitsNilData(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusOK, "Token revoked", nil)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "data")
}

func TestError_MirrorsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, apperrors.NotFound("User not found!"))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
	assert.Equal(t, "User not found!", body["message"])
	assert.NotContains(t, body, "data")
}

func TestError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.New("pq: relation \"users\" does not exist"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["message"])
	assert.NotContains(t, rec.Body.String(), "relation")
}

func TestError_NoUpdatesAppliedIsOK(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, apperrors.NoUpdatesApplied())

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "No updates applied.", body["message"])
}
