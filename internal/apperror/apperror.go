// Package apperror defines the error taxonomy shared by the photo pipeline.
// Every error surfaced to the HTTP boundary is an *AppError carrying a
// machine-readable code and the HTTP status the boundary should use.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeNotConnected       Code = "NOT_CONNECTED"
	CodeReauthRequired     Code = "REAUTH_REQUIRED"
	CodeTokenRefreshFailed Code = "TOKEN_REFRESH_FAILED"
	CodeStorageAuth        Code = "STORAGE_AUTH_ERROR"
	CodeStorage            Code = "STORAGE_ERROR"
	CodePersistence        Code = "PERSISTENCE_ERROR"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeUnauthorized       Code = "UNAUTHORIZED"
)

// ProviderName is substituted into user-facing connection messages.
const ProviderName = "Google Drive"

// AppError is the unified application error type.
type AppError struct {
	Code       Code           `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

// Sentinels for errors.Is. Matching is by code, so any wrapped AppError with
// the same code satisfies errors.Is(err, ErrX).
var (
	ErrNotConnected       = &AppError{Code: CodeNotConnected}
	ErrReauthRequired     = &AppError{Code: CodeReauthRequired}
	ErrTokenRefreshFailed = &AppError{Code: CodeTokenRefreshFailed}
	ErrStorageAuth        = &AppError{Code: CodeStorageAuth}
	ErrStorage            = &AppError{Code: CodeStorage}
	ErrPersistence        = &AppError{Code: CodePersistence}
	ErrNotFound           = &AppError{Code: CodeNotFound}
	ErrInvalidInput       = &AppError{Code: CodeInvalidInput}
	ErrUnauthorized       = &AppError{Code: CodeUnauthorized}
)

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithCause sets the underlying cause and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an AppError.
func New(code Code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  code == CodeStorage,
	}
}

// NotConnected is returned when the user has no stored provider credentials.
func NotConnected() *AppError {
	return New(CodeNotConnected,
		fmt.Sprintf("%s is not connected. Please connect your %s account and try again.", ProviderName, ProviderName),
		http.StatusPreconditionFailed)
}

// ReauthRequired is returned when stored credentials can no longer be used.
func ReauthRequired(reason string) *AppError {
	return New(CodeReauthRequired,
		fmt.Sprintf("%s authorization expired (%s). Please reconnect your %s account.", ProviderName, reason, ProviderName),
		http.StatusUnauthorized)
}

// TokenRefreshFailed wraps a failed call to the provider's refresh endpoint.
func TokenRefreshFailed(cause error) *AppError {
	return New(CodeTokenRefreshFailed,
		fmt.Sprintf("Could not refresh %s access. Please reconnect your %s account.", ProviderName, ProviderName),
		http.StatusUnauthorized).WithCause(cause)
}

// StorageAuth is returned when the provider rejects the access token.
func StorageAuth(op string, cause error) *AppError {
	return New(CodeStorageAuth,
		fmt.Sprintf("%s rejected the request to %s. Please reconnect your %s account.", ProviderName, op, ProviderName),
		http.StatusUnauthorized).WithCause(cause).WithDetail("operation", op)
}

// Storage wraps an unexpected provider failure.
func Storage(op string, cause error) *AppError {
	msg := fmt.Sprintf("%s failed to %s", ProviderName, op)
	if cause != nil {
		msg += ": " + Truncate(cause.Error(), MaxCauseLen)
	}
	return New(CodeStorage, msg, http.StatusBadGateway).WithCause(cause).WithDetail("operation", op)
}

// Persistence wraps a database failure.
func Persistence(op string, cause error) *AppError {
	return New(CodePersistence, fmt.Sprintf("Failed to %s.", op), http.StatusInternalServerError).
		WithCause(cause).WithDetail("operation", op)
}

// NotFound is returned when a resource does not exist for the user.
func NotFound(resource, id string) *AppError {
	e := New(CodeNotFound, fmt.Sprintf("The requested %s was not found.", resource), http.StatusNotFound).
		WithDetail("resource", resource)
	if id != "" {
		e.WithDetail("id", id)
	}
	return e
}

// InvalidInput is returned for request validation failures.
func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

// Unauthorized is returned when the caller identity cannot be established.
func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

// Annotate returns a copy of err with a prefixed message, keeping its code and
// status. Non-AppError values are wrapped with fmt.Errorf.
func Annotate(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	prefix := fmt.Sprintf(format, args...)
	ae, ok := As(err)
	if !ok {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	cp := *ae
	cp.Message = prefix + ": " + ae.Message
	cp.Cause = err
	cp.Details = make(map[string]any, len(ae.Details))
	for k, v := range ae.Details {
		cp.Details[k] = v
	}
	return &cp
}

// As extracts the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &AppError{Code: code})
}

// HTTPStatus returns the status the boundary should report for err.
func HTTPStatus(err error) int {
	if ae, ok := As(err); ok && ae.HTTPStatus != 0 {
		return ae.HTTPStatus
	}
	return http.StatusInternalServerError
}
