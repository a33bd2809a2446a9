// Package controlplane talks to the remote workflow server: CRUD,
// activation, and execution inspection, with classified errors and a
// bounded retry policy.
package controlplane

import (
	"errors"
	"fmt"
)

// Error codes classifying collaborator failures.
const (
	CodeConnectionError    = "CONNECTION_ERROR"
	CodeNoResponse         = "NO_RESPONSE"
	CodeRateLimitError     = "RATE_LIMIT_ERROR"
	CodeAuthError          = "AUTH_ERROR"
	CodeValidationRejected = "VALIDATION_REJECTED"
	CodeAPIError           = "API_ERROR"
)

// Error is a classified control-plane failure.
type Error struct {
	Code       string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether the retry policy may re-attempt the call.
// Authentication failures and non-429 4xx rejections are final.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeConnectionError, CodeNoResponse, CodeRateLimitError:
		return true
	case CodeAuthError, CodeValidationRejected:
		return false
	}
	return e.StatusCode >= 500
}

// IsRetryable classifies an arbitrary error for the retry policy. Unknown
// errors count as transient connection problems.
func IsRetryable(err error) bool {
	var cpErr *Error
	if errors.As(err, &cpErr) {
		return cpErr.Retryable()
	}
	return true
}

func classifyStatus(status int, message string) *Error {
	e := &Error{StatusCode: status, Message: message}
	switch {
	case status == 401 || status == 403:
		e.Code = CodeAuthError
	case status == 429:
		e.Code = CodeRateLimitError
	case status == 400 || status == 422:
		e.Code = CodeValidationRejected
	case status >= 500:
		e.Code = CodeNoResponse
	default:
		e.Code = CodeAPIError
	}
	return e
}
