package http

import (
	"errors"
	"fmt"
	"net/http"
)

// ServerFailure is the generic message clients see for anything but input errors.
const ServerFailure = "Server Failure"

// AppError represents application-level error with HTTP status.
// Only Message, Detail and Fields reach the client.
type AppError struct {
	Code    string            `json:"-"`
	Message string            `json:"message,omitempty"`
	Detail  string            `json:"error,omitempty"`
	Fields  []ValidationError `json:"fields,omitempty"`
	Status  int               `json:"-"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Detail
	} else if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// WithDetail sets the client-visible error string.
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// WithError wraps an underlying error that is logged but never rendered.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// BadRequestError creates a 400 error rendered as {"error": detail}.
func BadRequestError(detail string) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", http.StatusBadRequest).WithDetail(detail)
}

// BadRequestErrorf creates a 400 error with formatting.
func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// NotFoundError creates a 404 error.
func NotFoundError(message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", message, http.StatusNotFound)
}

// TooManyRequestsError creates a 429 error.
func TooManyRequestsError(detail string) *AppError {
	return NewAppError("ERR_RATE_LIMIT", "", http.StatusTooManyRequests).WithDetail(detail)
}

// ServiceUnavailableError creates a 503 Server Failure error.
func ServiceUnavailableError() *AppError {
	return NewAppError("ERR_UNAVAILABLE", ServerFailure, http.StatusServiceUnavailable)
}

// InternalError creates a 500 Server Failure error.
func InternalError() *AppError {
	return NewAppError("ERR_INTERNAL", ServerFailure, http.StatusInternalServerError)
}

// AsAppError converts any error into an AppError. Unknown errors become a 500
// that keeps the cause for logging only.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalError().WithError(err)
}
