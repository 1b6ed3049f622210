package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/orgstack/identity/pkg/orgsdk"
	"github.com/orgstack/identity/pkg/slogx"
)

// WriteJSON writes v as a JSON response with the given status. Encoding
// failures after the header is sent can only be logged.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slogx.FromContext(r.Context()).Error("write json response", slog.Any("err", err))
	}
}

// WriteNoCache marks the response as uncacheable. Used on everything that
// carries tokens or secrets.
func WriteNoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// WriteValidationError writes the 400 envelope with per-field messages.
func WriteValidationError(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	WriteJSON(w, r, http.StatusBadRequest, orgsdk.ValidationErrorResponse{
		Error:  "validation_failed",
		Fields: fields,
	})
}

// WriteError writes the generic error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, description string) {
	WriteJSON(w, r, status, orgsdk.ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

// WriteUnauthorized writes the 401 envelope and the WWW-Authenticate header.
func WriteUnauthorized(w http.ResponseWriter, r *http.Request, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="identity"`)
	WriteError(w, r, http.StatusUnauthorized, "invalid_token", description)
}

// WriteForbidden writes the 403 envelope.
func WriteForbidden(w http.ResponseWriter, r *http.Request, description string) {
	WriteError(w, r, http.StatusForbidden, "forbidden", description)
}

// WriteServerError logs the underlying error and writes an opaque 500.
func WriteServerError(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Error("internal error", slog.Any("err", err))
	WriteError(w, r, http.StatusInternalServerError, "server_error", "an internal error occurred")
}

// DecodeJSON decodes the request body into v, rejecting unknown fields and
// oversized bodies.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
