// Package errors defines the domain error taxonomy shared by the
// conversation engine, its collaborators and the HTTP surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to branch on it.
type Kind string

const (
	// KindValidation indicates a local precondition failure on input.
	KindValidation Kind = "VALIDATION"
	// KindNotFound indicates a missing conversation or user.
	KindNotFound Kind = "NOT_FOUND"
	// KindBadRequest indicates a request that cannot be processed as sent.
	KindBadRequest Kind = "BAD_REQUEST"
	// KindInternal is the catch-all raised at orchestration boundaries.
	KindInternal Kind = "INTERNAL_ERROR"

	// KindUnauthorized indicates the model provider rejected our credentials.
	KindUnauthorized Kind = "UNAUTHORIZED"
	// KindRateLimitExceeded indicates the model provider throttled the call.
	KindRateLimitExceeded Kind = "RATE_LIMIT_EXCEEDED"
	// KindConnection indicates the model provider could not be reached.
	KindConnection Kind = "CONNECTION"
	// KindGeneric indicates an unexpected model provider failure.
	KindGeneric Kind = "GENERIC"
)

// Error is a structured domain error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a diagnostic detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus maps the error kind to the status code reported to clients.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, code, msg string) *Error {
	if code == "" {
		code = string(kind)
	}
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Validation creates a validation error.
func Validation(code, msg string) *Error {
	return newError(KindValidation, code, msg)
}

// NotFound creates a not found error.
func NotFound(code, msg string) *Error {
	return newError(KindNotFound, code, msg)
}

// BadRequest creates a bad request error.
func BadRequest(code, msg string) *Error {
	return newError(KindBadRequest, code, msg)
}

// Internal wraps cause into an opaque internal error.
func Internal(msg string, cause error) *Error {
	e := newError(KindInternal, "", msg)
	e.Cause = cause
	if cause != nil {
		e.WithDetail("original_error", cause.Error())
	}
	return e
}

// Unauthorized creates a model provider authentication error.
func Unauthorized(msg string, cause error) *Error {
	e := newError(KindUnauthorized, "AUTHENTICATION_ERROR", msg)
	e.Cause = cause
	return e
}

// RateLimitExceeded creates a model provider rate limit error.
func RateLimitExceeded(msg string, cause error) *Error {
	e := newError(KindRateLimitExceeded, "RATE_LIMIT_ERROR", msg)
	e.Cause = cause
	return e
}

// Connection creates a model provider connection error.
func Connection(msg string, cause error) *Error {
	e := newError(KindConnection, "CONNECTION_ERROR", msg)
	e.Cause = cause
	return e
}

// Generic creates an unexpected model provider error.
func Generic(msg string, cause error) *Error {
	e := newError(KindGeneric, "GENERIC_ERROR", msg)
	e.Cause = cause
	return e
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err's outermost domain error has the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// KindOf returns the kind of err, or def when err carries no domain error.
func KindOf(err error, def Kind) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return def
}
