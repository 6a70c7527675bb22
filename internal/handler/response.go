// Package handler contains the HTTP handlers and the JSON envelope helpers
// they share.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mahin/learnhub/internal/apperror"
	"github.com/mahin/learnhub/internal/middleware"
)

// ErrorResponse is the standard error format returned by all API endpoints.
// Every error is a structured body, never a bare transport error.
//
// Fields is present only on validation errors (field → messages), TraceID
// only on internal errors so a client can quote it when reporting a failure.
type ErrorResponse struct {
	Error   string              `json:"error"`             // machine-readable type, e.g. "not_found"
	Message string              `json:"message"`           // human-readable description
	Fields  map[string][]string `json:"fields,omitempty"`  // validation errors only
	TraceID string              `json:"traceId,omitempty"` // internal errors only
}

// writeJSON sends a JSON response with the given status code.
// Headers must be set before WriteHeader, and WriteHeader before the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers already sent; nothing left to do but log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status and sends it.
//
// This is the single place the error taxonomy meets HTTP. The service layer
// returns apperror sentinels; errors.Is/As walk the wrapped chain here:
//
//	validation    → 400, with the field map
//	unauthorized  → 401
//	forbidden     → 403
//	not found     → 404
//	conflict      → 409 (business condition, distinct from a shape error)
//	anything else → 500, generic message plus the request's trace ID —
//	                internal detail goes to the log, never to the client
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{
				Error:   errorType,
				Message: appErr.Message,
				Fields:  appErr.Fields,
			})
			return
		}
	}

	// Unknown or store-level error. The raw message might contain SQL or
	// file paths, so the client gets a generic body with the trace ID.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
		TraceID: middleware.CorrelationIDFromContext(r.Context()),
	})
}
