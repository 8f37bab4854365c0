package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtec/authgate/internal/auth"
)

func TestAuditLogList_AdminOnly(t *testing.T) {
	handler := NewAuditLogHandler(emptyStore())

	tests := []struct {
		name      string
		principal *auth.Principal
	}{
		{"regular user", regularUserPrincipal()},
		{"scoped token", scopedTokenPrincipal("audit-logs:read")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.List(rec, authedRequest(http.MethodGet, "/api/audit-logs", tt.principal))

			assert.Equal(t, http.StatusForbidden, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "Missing permissions!", body["message"])
		})
	}
}
