// Package errors defines the coded application error returned across the
// HTTP boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError carries a stable client-facing code next to the wrapped cause
type AppError struct {
	Code    string // stable code clients switch on
	Message string // human-readable message
	Err     error  // underlying error, never serialized
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeLedgerUnbalanced    = "LEDGER_UNBALANCED"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeUpstream            = "UPSTREAM_ERROR"
	ErrCodeNotReady            = "NOT_READY"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// Wrap attaches a code and message to err
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation creates a validation error
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{Code: ErrCodeBadRequest, Message: message}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return &AppError{Code: ErrCodeUnauthorized, Message: message}
}

// GetAppError extracts an AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HTTPStatus returns the response status for a code. Unknown codes are 500.
func HTTPStatus(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeLedgerUnbalanced, ErrCodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeUpstream:
		return http.StatusBadGateway
	case ErrCodeNotReady:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
