package handler

// RESPONSE HELPERS:
// Every JSON error from the admin surface has the same shape:
//
//	{"error": "unauthorized", "message": "invalid credentials"}
//
// writeError is the one place domain errors become HTTP status codes.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/clicktrail/internal/apperror"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends data as JSON with the given status. Headers must be set
// before WriteHeader; anything set afterwards is silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to a status code.
//
// errors.Is walks the whole chain, so this works however many layers wrapped
// the sentinel:
//
//	service returns: fmt.Errorf("tracking click: %w", apperror.DuplicateToken(tok))
//	which wraps:     AppError{Err: ErrDuplicateToken, ...}
//	errors.Is walks: outer -> AppError -> ErrDuplicateToken
//
// A duplicate token is an integrity violation on our side, so the caller gets
// a plain 500, same as any unclassified error. Raw error text never reaches
// the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"
		message := "An internal error occurred"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status, errorType, message = http.StatusBadRequest, "validation_error", appErr.Message
		case errors.Is(err, apperror.ErrUnauthorized):
			status, errorType, message = http.StatusUnauthorized, "unauthorized", appErr.Message
		case errors.Is(err, apperror.ErrNotFound):
			status, errorType, message = http.StatusNotFound, "not_found", appErr.Message
		case errors.Is(err, apperror.ErrUnavailable):
			status, errorType, message = http.StatusServiceUnavailable, "unavailable", appErr.Message
		}

		writeJSON(w, status, ErrorResponse{Error: errorType, Message: message})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
