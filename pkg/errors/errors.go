package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("resource already exists")
	ErrInvalidCode    = errors.New("invalid verification code")
	ErrExpiredCode    = errors.New("expired verification code")
	ErrSessionExpired = errors.New("session expired")
	ErrAuthentication = errors.New("authentication failed")
	ErrAuthorization  = errors.New("forbidden")
	ErrNotFound       = errors.New("resource not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrNetwork        = errors.New("network failure")
	ErrServer         = errors.New("server error")
	ErrPersistence    = errors.New("persistence failure")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
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

// Validation creates a 400 error for a client-side policy violation.
// No network call should have been made before raising it.
func Validation(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrValidation,
	}
}

// Conflict creates a 409 error for an already-taken username or email.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// InvalidCode creates a 400 error for a rejected verification code.
func InvalidCode(message string) *AppError {
	return &AppError{
		Code:    "INVALID_CODE",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidCode,
	}
}

// ExpiredCode creates a 400 error for a verification code past its lifetime.
func ExpiredCode(message string) *AppError {
	return &AppError{
		Code:    "EXPIRED_CODE",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrExpiredCode,
	}
}

// SessionExpired creates a 401 error for a missing or stale pending session.
func SessionExpired(message string) *AppError {
	return &AppError{
		Code:    "SESSION_EXPIRED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrSessionExpired,
	}
}

// Authentication creates a 401 error for rejected credentials.
func Authentication(message string) *AppError {
	return &AppError{
		Code:    "AUTHENTICATION",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrAuthentication,
	}
}

// Authorization creates a 403 error for an action the caller may not perform.
func Authorization(message string) *AppError {
	return &AppError{
		Code:    "AUTHORIZATION",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrAuthorization,
	}
}

// NotFound creates a 404 error.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// RateLimited creates a 429 error.
func RateLimited(message string) *AppError {
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     ErrRateLimited,
	}
}

// Network creates an error for a transport-level failure where no HTTP
// response was received. Distinct from Server, which covers responses the
// upstream did send.
func Network(err error) *AppError {
	return &AppError{
		Code:    "NETWORK",
		Message: "could not reach the server",
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", ErrNetwork, err),
	}
}

// Server creates an error for a 5xx upstream response or a malformed
// success response.
func Server(message string) *AppError {
	return &AppError{
		Code:    "SERVER",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     ErrServer,
	}
}

// Persistence creates an error for a token-store write failure.
func Persistence(err error) *AppError {
	return &AppError{
		Code:    "PERSISTENCE",
		Message: "could not persist session state",
		Status:  http.StatusInternalServerError,
		Err:     fmt.Errorf("%w: %w", ErrPersistence, err),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidCode), errors.Is(err, ErrExpiredCode):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrServer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-displayable message for an error. Every failure
// path surfaced to a caller carries one.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an internal error occurred"
}
