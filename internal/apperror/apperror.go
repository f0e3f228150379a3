// Package apperror carries the error taxonomy shared by services and
// transport: every failure a handler can surface maps to exactly one Kind,
// and every Kind maps to exactly one HTTP status.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for transport mapping.
type Kind int

const (
	// KindUnknown covers unclassified internal failures.
	KindUnknown Kind = iota
	// KindValidation is bad, missing or out-of-range input.
	KindValidation
	// KindNotFound is a referenced entity that does not exist.
	KindNotFound
	// KindConflict is a version mismatch or duplicate identity.
	KindConflict
	// KindContention is a lock not acquired within the retry budget.
	KindContention
	// KindCorruption is a backing file that is not the expected shape.
	KindCorruption
	// KindAuth is a missing/invalid/expired token or bad credentials.
	KindAuth
)

// Error is a classified error with an optional offending field name.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a user-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted user-safe message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Field creates a validation-style error scoped to a named field.
func Field(kind Kind, field, message string) *Error {
	return &Error{Kind: kind, Field: field, Message: message}
}

// Wrap classifies an underlying error while keeping it on the chain.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// FieldOf returns the offending field name, if the error names one.
func FieldOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// Message returns the user-safe message for err. Unclassified errors get a
// generic message so internal detail never leaks to clients.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// Status maps an error to the HTTP status code the transport should return.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindContention:
		return http.StatusServiceUnavailable
	case KindAuth:
		return http.StatusUnauthorized
	case KindCorruption:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
