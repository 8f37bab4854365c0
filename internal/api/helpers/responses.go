package helpers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/veldtec/authgate/internal/apperrors"
)

// Envelope is the uniform response shape. Data is omitted when nil;
// the HTTP status code always mirrors Status.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// Success writes an enveloped success response.
func Success(w http.ResponseWriter, status int, message string, data any) {
	RespondJSON(w, status, Envelope{Status: status, Message: message, Data: data})
}

// Error maps a domain error onto the envelope. Internal details are
// logged, never surfaced.
func Error(w http.ResponseWriter, err error) {
	appErr := apperrors.From(err)
	if appErr.Status() >= 500 {
		slog.Error("request_failed", "error", appErr.Error())
	}
	RespondJSON(w, appErr.Status(), Envelope{Status: appErr.Status(), Message: appErr.Message})
}
