// Package httpx holds the JSON response helpers shared by every handler.
package httpx

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// FieldError is one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// ValidationFailed writes a 400 carrying the individual field errors.
func ValidationFailed(w http.ResponseWriter, details []FieldError) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: details})
}

// Internal logs err and writes a generic 500 so no detail leaks to the client.
func Internal(w http.ResponseWriter, r *http.Request, log *slog.Logger, msg string, err error) {
	log.ErrorContext(r.Context(), msg, "error", err, "path", r.URL.Path)
	Error(w, http.StatusInternalServerError, "Internal server error")
}

// DecodeJSON reads a size-limited JSON body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// ClientIP returns the caller address. chi's RealIP middleware has already
// replaced RemoteAddr with X-Forwarded-For / X-Real-IP when present.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
