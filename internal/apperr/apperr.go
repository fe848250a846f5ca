package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies application errors so transport code can map them to a
// response without string matching.
type Kind string

const (
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindNotFound     Kind = "NOT_FOUND"
	KindForbidden    Kind = "FORBIDDEN"
	KindConflict     Kind = "CONFLICT"
	KindInvalid      Kind = "INVALID"
	KindInternal     Kind = "INTERNAL"
)

// Error is an application error with a stable, user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error returns the user-facing message. Internal errors already embed
// their cause in the message; the raw cause stays reachable via Unwrap.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap implements the unwrap interface
func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthorized is returned when the actor is missing, cannot be resolved,
// or holds the wrong role for the operation.
func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Message: "Unauthorized action"}
}

// NotFound is returned when the named entity does not exist.
// The message follows the "<Entity> not found" convention.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// Forbidden is returned for an illegal state transition; the message names
// the rule that was violated.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Conflict is returned when the request collides with existing data.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Invalid is returned when request validation fails before any persistence
// call is made.
func Invalid(message string) *Error {
	return &Error{Kind: KindInvalid, Message: message}
}

// Internal wraps a lower-layer failure with a stable prefix, e.g.
// Internal("saving appointment", err) -> "Error saving appointment: <cause>".
func Internal(action string, err error) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf("Error %s: %v", action, err), Err: err}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsUnauthorized reports whether err is an Unauthorized error.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}
