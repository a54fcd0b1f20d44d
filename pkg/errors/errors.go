// Package errors defines the application error taxonomy shared by all
// layers. Handlers map AppError values to HTTP responses via the Code and
// Status fields; services wrap lower-level failures so callers can test
// categories with errors.Is.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for category checks with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrConsistency    = errors.New("consistency violation")
	ErrInternal       = errors.New("internal error")
)

// Machine-readable error codes returned to API clients.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeValidation       = "VALIDATION_ERROR"
	CodeServiceUnavail   = "SERVICE_UNAVAILABLE"
	CodeConsistency      = "CONSISTENCY_VIOLATION"
	CodeInternal         = "INTERNAL_ERROR"
	CodeInvalidParameter = "INVALID_PARAMETER"
)

// AppError carries a machine-readable code, a human-readable message and the
// HTTP status to respond with. Err, when set, preserves the underlying cause
// for errors.Is / errors.As.
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound builds a 404 error for a missing resource identified by id.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput builds a 400 error for a request the caller can fix.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Validation builds a 400 error for structured request validation failures.
func Validation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// ServiceUnavailable builds a 503 error for an unreachable or degraded
// downstream dependency.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    CodeServiceUnavail,
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// ConsistencyViolation builds a 500 error for the case where side effects on
// a remote system were committed but the local durable write failed. These
// always require operator attention.
func ConsistencyViolation(message string) *AppError {
	return &AppError{
		Code:    CodeConsistency,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     ErrConsistency,
	}
}

// Internal wraps an unexpected failure as a 500 without leaking the cause to
// API clients.
func Internal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "an unexpected error occurred",
		Status:  http.StatusInternalServerError,
		Err:     errors.Join(ErrInternal, err),
	}
}

// HTTPStatus returns the status code to respond with for err. Unknown errors
// map to 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
