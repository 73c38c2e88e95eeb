package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// Stable machine-readable error codes returned to API callers.
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeNoValidUpdate          = "NO_VALID_UPDATE"
	CodeNotFound               = "NOT_FOUND"
	CodeQuotaExhausted         = "QUOTA_EXHAUSTED"
	CodeBackendUnavailable     = "BACKEND_UNAVAILABLE"
	CodeBackendRejectedContent = "BACKEND_REJECTED_CONTENT"
	CodeBackendQuotaExceeded   = "BACKEND_QUOTA_EXCEEDED"
	CodeBackendError           = "BACKEND_ERROR"
	CodeDependencyUnavailable  = "DEPENDENCY_UNAVAILABLE"
	CodeReadOnly               = "READ_ONLY"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeRateLimited            = "RATE_LIMIT_EXCEEDED"
	CodeInternal               = "INTERNAL_ERROR"
)

// Sentinels for errors.Is matching. Matching compares codes only, so any
// AppError carrying the same code matches regardless of message or cause.
var (
	ErrValidation             = &AppError{StatusCode: http.StatusBadRequest, Code: CodeValidation, Message: "invalid request"}
	ErrNoValidUpdate          = &AppError{StatusCode: http.StatusBadRequest, Code: CodeNoValidUpdate, Message: "no valid update supplied"}
	ErrNotFound               = &AppError{StatusCode: http.StatusNotFound, Code: CodeNotFound, Message: "resource not found"}
	ErrQuotaExhausted         = &AppError{StatusCode: http.StatusTooManyRequests, Code: CodeQuotaExhausted, Message: "generation credits exhausted"}
	ErrBackendUnavailable     = &AppError{StatusCode: http.StatusServiceUnavailable, Code: CodeBackendUnavailable, Message: "generation backend unavailable"}
	ErrBackendRejectedContent = &AppError{StatusCode: http.StatusUnprocessableEntity, Code: CodeBackendRejectedContent, Message: "generation backend rejected the content"}
	ErrBackendQuotaExceeded   = &AppError{StatusCode: http.StatusServiceUnavailable, Code: CodeBackendQuotaExceeded, Message: "generation backend quota exceeded"}
	ErrBackendError           = &AppError{StatusCode: http.StatusBadGateway, Code: CodeBackendError, Message: "generation backend error"}
	ErrDependencyUnavailable  = &AppError{StatusCode: http.StatusServiceUnavailable, Code: CodeDependencyUnavailable, Message: "dependency unavailable"}
	// ErrReadOnly is returned by a tier that can answer reads but cannot
	// record changes. It never falls through.
	ErrReadOnly = &AppError{StatusCode: http.StatusServiceUnavailable, Code: CodeReadOnly, Message: "changes cannot be recorded right now"}
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"-"`
	cause      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is reports whether target is an AppError with the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Stack:      string(debug.Stack()),
	}
}

// New derives a fresh error from a sentinel with a specific message
func New(kind *AppError, message string) *AppError {
	return &AppError{
		StatusCode: kind.StatusCode,
		Code:       kind.Code,
		Message:    message,
	}
}

// Wrap derives a fresh error from a sentinel and records cause
func Wrap(kind *AppError, cause error, message string) *AppError {
	e := New(kind, message)
	e.cause = cause
	return e
}

// Validation is shorthand for a VALIDATION_ERROR with a field-level detail
func Validation(field, message string) *AppError {
	return New(ErrValidation, message).WithDetails(map[string]string{"field": field})
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(code string, message string) *AppError {
	return NewError(http.StatusForbidden, code, message)
}

// NewTooManyRequestsError creates a 429 Too Many Requests error
func NewTooManyRequestsError(code string, message string) *AppError {
	return NewError(http.StatusTooManyRequests, code, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// IsDependency reports whether err belongs to the class of failures caused by
// an unavailable collaborator rather than by the request itself.
func IsDependency(err error) bool {
	return stderrors.Is(err, ErrDependencyUnavailable) ||
		stderrors.Is(err, ErrBackendUnavailable) ||
		stderrors.Is(err, ErrBackendQuotaExceeded)
}

// As returns err as an *AppError when one is present in its chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
