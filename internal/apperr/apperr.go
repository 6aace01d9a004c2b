// Package apperr defines the failure taxonomy shared by the hold lifecycle,
// measurement queries and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindValidation  Kind = "validation"
	KindBadRequest  Kind = "bad_request"
	KindConsistency Kind = "consistency"
	KindInternal    Kind = "internal"
)

// Error is a domain failure with a human readable reason
type Error struct {
	Kind    Kind   `json:"type"`
	Message string `json:"message"`
	err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause
func (e *Error) Unwrap() error {
	return e.err
}

// StatusCode maps the kind to its HTTP status
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindBadRequest, KindConsistency:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NotFound reports a referenced entity that does not exist
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Conflict reports a violated state-machine precondition
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Validation reports semantically invalid input
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// BadRequest reports malformed input or an oversized query
func BadRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

// Consistency reports stored state that breaks an expected invariant
func Consistency(msg string) *Error {
	return &Error{Kind: KindConsistency, Message: msg}
}

// Internal wraps an unexpected failure
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, err: err}
}

// As extracts an *Error from err, if any
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// StatusCode returns the HTTP status for any error, 500 for unclassified ones
func StatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode()
	}
	return http.StatusInternalServerError
}

// Message returns the client-facing reason for err
func Message(err error) string {
	if appErr, ok := As(err); ok {
		if appErr.Kind == KindInternal {
			return "Internal server error."
		}
		return appErr.Message
	}
	return "Internal server error."
}
