package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasskeyList_AdminOnly(t *testing.T) {
	handler := NewPasskeyHandler(nil, emptyStore(), nil)

	rec := httptest.NewRecorder()
	handler.List(rec, authedRequest(http.MethodGet, "/api/passkeys", regularUserPrincipal()))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPasskeyListByUser_StrictlySelf(t *testing.T) {
	handler := NewPasskeyHandler(nil, emptyStore(), nil)

	rec := httptest.NewRecorder()
	otherID := uuid.New().String()
	req := authedRequest(http.MethodGet, "/api/users/"+otherID+"/passkeys", regularUserPrincipal(), "id", otherID)
	handler.ListByUser(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Cannot access passkeys for another user!", body["message"])
}

func TestPasskeyListByUser_TokenPrincipalRejected(t *testing.T) {
	handler := NewPasskeyHandler(nil, emptyStore(), nil)
	principal := scopedTokenPrincipal("user:*")

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodGet, "/api/users/"+principal.UserID.String()+"/passkeys", principal, "id", principal.UserID.String())
	handler.ListByUser(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPasskeyListByUser_InvalidID(t *testing.T) {
	handler := NewPasskeyHandler(nil, emptyStore(), nil)

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodGet, "/api/users/nope/passkeys", regularUserPrincipal(), "id", "nope")
	handler.ListByUser(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
