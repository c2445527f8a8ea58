package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a service failure. Handlers map kinds onto HTTP
// status codes; callers compare with errors.Is against the Err* values.
type ErrorKind string

const (
	KindUnauthorized      ErrorKind = "unauthorized"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindEmptyCart         ErrorKind = "empty_cart"
	KindForbidden         ErrorKind = "forbidden"
	KindConflict          ErrorKind = "conflict"
	KindStore             ErrorKind = "store_error"
)

// Error is the typed failure returned by every service operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrEmptyCart         = &Error{Kind: KindEmptyCart, Message: "cart is empty"}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "conflict"}
	ErrStore             = &Error{Kind: KindStore, Message: "storage failure, please try again"}
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func invalidInput(format string, args ...interface{}) *Error {
	return newError(KindInvalidInput, format, args...)
}

func forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, format, args...)
}

func conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

// storeError wraps a persistence failure. Errors that already carry a kind
// pass through unchanged so a rolled back transaction keeps its cause.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	return &Error{Kind: KindStore, Message: ErrStore.Message, Err: err}
}

// KindOf reports the kind of err, or KindStore for foreign errors.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindStore
}
