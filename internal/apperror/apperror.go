// Package apperror defines the application's error taxonomy.
//
// Every error that crosses a layer boundary wraps one of the sentinels below,
// so callers classify failures with errors.Is and the HTTP layer maps them to
// status codes in one place (handler.writeError).
//
// Expected outcomes are NOT errors: a duplicate webhook delivery or a start
// event for an unknown token is a Matcher outcome, not an AppError.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrDuplicateToken = errors.New("duplicate token")
	ErrUnavailable    = errors.New("unavailable")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message, safe to show clients
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, for logs only
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// NotFound names a resource that does not exist, e.g. an unrouted path.
func NotFound(resource string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unauthorized is returned when a shared secret or ticket does not check out.
// The message never echoes what the caller sent.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// DuplicateToken signals an integrity violation: a freshly generated token
// already exists in the store. It is fatal to the request and never retried.
func DuplicateToken(token string) *AppError {
	return &AppError{
		Err:     ErrDuplicateToken,
		Message: fmt.Sprintf("click token %s already exists", token),
	}
}

// Unavailable wraps an infrastructure failure (storage, upstream API) so the
// boundary can answer with a retryable status. Message never carries the
// cause; Error() does.
func Unavailable(what string, err error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("%s unavailable", what),
		Cause:   err,
	}
}
