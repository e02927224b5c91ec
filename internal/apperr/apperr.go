// Package apperr carries the error taxonomy shared by the quota core.
// Validation and conflict errors are correctable by the caller; storage
// errors are not, and the HTTP layer maps them to different status codes so
// the console can tell "fix your input" from "try again".
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the caller.
type Kind int

const (
	// KindStorage is any unexpected persistence failure.
	KindStorage Kind = iota
	// KindValidation rejects bad input before any write; Field names the
	// offending field.
	KindValidation
	// KindNotFound means the referenced account, template or request does
	// not exist; no partial effect.
	KindNotFound
	// KindConflict guards one-shot transitions, e.g. deciding an already
	// decided slot request.
	KindConflict
)

// Error is a classified error with an optional offending field and wrapped
// cause.
type Error struct {
	Kind  Kind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a KindValidation error naming the offending field.
func Validation(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error for the named entity.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflict builds a KindConflict error.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Storage wraps an unexpected persistence error.
func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Err: err}
}

// KindOf returns the classification of err, defaulting to KindStorage for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// HTTPStatus maps an error kind to the status the handlers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
