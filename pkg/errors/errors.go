package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different types of errors that can occur while talking to GitHub
type ErrorType string

const (
	ErrorTypeNetwork          ErrorType = "network"
	ErrorTypeRateLimit        ErrorType = "rate_limit"
	ErrorTypeForbidden        ErrorType = "forbidden"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeUnprocessable    ErrorType = "unprocessable"
	ErrorTypeServerError      ErrorType = "server_error"
	ErrorTypeUnexpectedStatus ErrorType = "unexpected_status"
	ErrorTypeParsing          ErrorType = "parsing"
	ErrorTypeUnknown          ErrorType = "unknown"
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(errorType ErrorType, code int, message string) *Error {
	return &Error{Type: errorType, Code: code, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(errorType ErrorType, code int, message string, err error) *Error {
	return &Error{Type: errorType, Code: code, Message: message, Err: err}
}

// Classify maps a GitHub response to an error type. An empty type means the
// response is usable. remaining is the X-RateLimit-Remaining value.
func Classify(statusCode int, message string, remaining int) ErrorType {
	if statusCode == 0 {
		return ErrorTypeNetwork
	}
	if remaining == 0 {
		return ErrorTypeRateLimit
	}

	switch {
	case statusCode == http.StatusOK:
		return ""
	case statusCode == http.StatusForbidden:
		if strings.Contains(strings.ToLower(message), "rate limit") {
			return ErrorTypeRateLimit
		}
		return ErrorTypeForbidden
	case statusCode == http.StatusNotFound:
		return ErrorTypeNotFound
	case statusCode == http.StatusUnprocessableEntity:
		return ErrorTypeUnprocessable
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnexpectedStatus
	}
}

// IsRetryable checks if an error type should be retried in place
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeServerError, ErrorTypeUnexpectedStatus, ErrorTypeParsing, ErrorTypeUnknown:
		return true
	default:
		return false
	}
}

// IsPermanent reports whether the error ends the crawl of a project
func IsPermanent(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeForbidden, ErrorTypeNotFound, ErrorTypeUnprocessable:
		return true
	default:
		return false
	}
}

// TypeOf extracts the error type from err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}
