package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable class of a domain error.
type ErrorKind string

const (
	KindInvalidCoordinate ErrorKind = "invalid_coordinate"
	KindBadRequest        ErrorKind = "bad_request"
	KindNotFound          ErrorKind = "not_found"
	KindPartialResolution ErrorKind = "partial_resolution"
	KindTimeout           ErrorKind = "timeout"
	KindOriginUnknown     ErrorKind = "origin_unknown"
	KindInternal          ErrorKind = "internal_error"
)

// Error is returned by core operations. Kind drives the HTTP status mapping.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a domain error without a cause.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError builds a domain error around a cause.
func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidCoordinate = &Error{Kind: KindInvalidCoordinate}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrOriginUnknown     = &Error{Kind: KindOriginUnknown}
)

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the human-readable message of a domain error, falling back to err.Error().
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}
