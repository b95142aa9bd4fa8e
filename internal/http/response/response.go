package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

// JSON writes v as the response body with the given status.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "response encode failed", "error", err.Error())
	}
}

// Error writes the standard error envelope. details carries field-level
// validation messages when the error is a validation failure.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]string) {
	JSON(w, r, status, errorEnvelope{
		Error:     errorBody{Code: code, Message: message, Details: details},
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}

// BadPayload maps a request-body decode failure to a status: bodies cut off
// by the size limit get 413, everything else 400.
func BadPayload(w http.ResponseWriter, r *http.Request, err error, message string) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		Error(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
		return
	}
	Error(w, r, http.StatusBadRequest, "BAD_REQUEST", message, nil)
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
