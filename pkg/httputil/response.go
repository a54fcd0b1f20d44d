// Package httputil provides the JSON response envelope and error writing
// helpers used by all HTTP handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/minimart/order-service/pkg/errors"
	"github.com/minimart/order-service/pkg/logger"
)

// Response is the envelope for successful responses.
type Response struct {
	Data any `json:"data"`
}

// ErrorResponse is the envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code and human-readable message.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteJSON writes v as the response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing to do but log.
		slog.Error("encode response body", slog.String("error", err.Error()))
	}
}

// WriteData writes {"data": v} with the given status code.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteError maps err to an HTTP error response. AppError values keep their
// code, message and status; anything else becomes an opaque 500. Responses
// with status >= 500 are logged with the request-scoped logger so operator
// context (correlation id, trace id) is attached.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	code := apperrors.CodeInternal
	message := "an unexpected error occurred"
	status := http.StatusInternalServerError

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
		status = appErr.Status
	}

	if status >= http.StatusInternalServerError {
		logger.FromContext(ctx).ErrorContext(ctx, "request failed",
			slog.String("error_code", code),
			slog.String("error", err.Error()),
		)
	}

	WriteJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// WriteValidationError writes a 400 response carrying per-field messages.
func WriteValidationError(w http.ResponseWriter, fields map[string]string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{
		Code:    apperrors.CodeValidation,
		Message: "request validation failed",
		Fields:  fields,
	}})
}

// ParseUUID validates that raw is a well-formed UUID and returns its
// canonical form. Handlers reject malformed path ids before touching
// storage.
func ParseUUID(raw, name string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", &apperrors.AppError{
			Code:    apperrors.CodeInvalidParameter,
			Message: name + " must be a valid UUID",
			Status:  http.StatusBadRequest,
			Err:     apperrors.ErrInvalidInput,
		}
	}
	return id.String(), nil
}
