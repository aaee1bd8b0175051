// Package apperr classifies errors into the kinds spec.md §7 names, so
// CRUD handlers can map them to {success, message} results without
// string-matching error text.
package apperr

import "errors"

// Kind is one of the error categories spec.md §7 defines.
type Kind string

const (
	KindNotFound     Kind = "NotFound"
	KindUnauthorized Kind = "Unauthorized"
	KindInvalid      Kind = "Invalid"
	KindStore        Kind = "Store"
	KindSearch       Kind = "Search"
	KindDispatch     Kind = "Dispatch"
	KindTransport    Kind = "Transport"
)

// Error wraps an underlying error with a classification.
type Error struct {
	Kind    Kind
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.Message + ": " + e.err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.err }

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

// As reports whether err (or any error it wraps) is an *Error, and if
// so returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
