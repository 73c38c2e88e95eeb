package errors

import (
	"net/http"
)

// Body is the wire shape of an error inside a response envelope
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// FromError converts a standard error to an AppError
// If the error is already an AppError (anywhere in its chain), it is returned as-is
// Otherwise, it is wrapped as an internal server error
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := As(err); ok {
		return appErr
	}

	return Wrap(&AppError{StatusCode: http.StatusInternalServerError, Code: CodeInternal}, err, "An unexpected error occurred")
}

// ToBody renders err for API responses
func ToBody(err error) *Body {
	if err == nil {
		return nil
	}
	appErr := FromError(err)
	return &Body{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
}

// GetStatusCode extracts the HTTP status code from an AppError, returns 500 if not an AppError
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetErrorCode extracts the error code from an AppError, returns "UNKNOWN_ERROR" if not an AppError
func GetErrorCode(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}
