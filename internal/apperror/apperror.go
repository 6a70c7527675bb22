// Package apperror defines the application's error taxonomy.
//
// The service layer returns these instead of HTTP status codes so it stays
// transport-agnostic. The handler layer translates them with errors.Is /
// errors.As in a single place (handler/response.go).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// AppError carries a sentinel error plus the human-readable context the
// client is allowed to see. Fields is only populated for validation errors.
type AppError struct {
	Err     error               // sentinel (ErrNotFound, ErrValidation, ...)
	Message string              // human-readable error message
	Fields  map[string][]string // field -> messages, validation errors only
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports that no record of the given resource exists for id.
func NotFound(resource string, id int64) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %d", resource, id),
	}
}

// NotFoundKey is NotFound for string-keyed lookups (identity key, email).
func NotFoundKey(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with key %s", resource, key),
	}
}

// ValidationFailed reports a single bad field.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Fields:  map[string][]string{field: {message}},
	}
}

// ValidationMap reports several bad fields at once, as collected by request
// body validation.
func ValidationMap(fields map[string][]string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: "validation failed",
		Fields:  fields,
	}
}

// Conflict reports a business-rule collision, e.g. a duplicate email on
// create. Deliberately does not echo row details beyond the message.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Unauthorized reports missing or invalid caller credentials.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden reports that the caller is authenticated but lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}
