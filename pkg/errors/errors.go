package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so callers can compare against the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && t != nil && e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrState        = New("STATE_CONFLICT", http.StatusConflict, "transition not allowed from current status")
	ErrInvalidToken = New("INVALID_TOKEN", http.StatusUnauthorized, "pass token is invalid")
	ErrExpiredToken = New("EXPIRED_TOKEN", http.StatusUnauthorized, "pass token has expired")
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrNotApproved  = New("NOT_APPROVED", http.StatusConflict, "pass request is not approved")

	ErrAlreadyReturned = New("ALREADY_RETURNED", http.StatusConflict, "pass already checked in")
	ErrNotYetExited    = New("NOT_YET_EXITED", http.StatusConflict, "pass has not been redeemed for exit")

	ErrNoEligibleRequest = New("NO_ELIGIBLE_REQUEST", http.StatusNotFound, "no eligible pass request")

	ErrFlagged      = New("FLAGGED", http.StatusForbidden, "student is flagged")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Activation sub-reasons carried in Meta["reason"] for NO_ELIGIBLE_REQUEST.
const (
	ReasonOutsideWindow   = "OUTSIDE_WINDOW"
	ReasonNothingApproved = "NOTHING_APPROVED"
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithMeta returns a copy of the error carrying extra machine-readable detail.
func WithMeta(err *Error, meta map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Meta = meta
	return &clone
}
