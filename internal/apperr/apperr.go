// Package apperr defines the failure kinds the service layer reports to the
// HTTP boundary. Every error leaving the service is either an *Error or is
// treated as KindInternal.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The HTTP layer maps each Kind to exactly one
// status code.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindDuplicateKey
	KindValidation
	KindBadRequest
	KindUnavailable
	KindMethodNotAllowed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindDuplicateKey:
		return "duplicate_key"
	case KindValidation:
		return "validation_failed"
	case KindBadRequest:
		return "bad_request"
	case KindUnavailable:
		return "store_unavailable"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "internal"
	}
}

// Error is a classified failure. Message is safe to show to API callers;
// Err carries the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	// Fields maps request field names to messages for KindValidation.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func DuplicateKey(format string, args ...any) *Error {
	return &Error{Kind: KindDuplicateKey, Message: fmt.Sprintf(format, args...)}
}

// Validation reports field-level input failures.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed", Fields: fields}
}

// BadRequest reports a malformed argument that is not tied to a body field,
// such as an unparsable query parameter.
func BadRequest(err error) *Error {
	return &Error{Kind: KindBadRequest, Message: "Invalid argument: " + err.Error(), Err: err}
}

// MethodNotAllowed reports a known path requested with an unsupported method.
func MethodNotAllowed(method, path string) *Error {
	return &Error{Kind: KindMethodNotAllowed, Message: fmt.Sprintf("Method %s is not supported for %s", method, path)}
}

func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: "Database connection error. Please try again later.", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "An unexpected error occurred. Please try again later.", Err: err}
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As converts any error into an *Error, wrapping unclassified errors as
// KindInternal.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
