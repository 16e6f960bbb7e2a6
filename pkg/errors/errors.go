// Package errors defines the coded error type shared by the keel CLI and
// API.
//
// Every user-facing failure carries a machine-readable Code so the HTTP
// layer can map it to a status and clients can branch without parsing
// message text. Codes group loosely by prefix: INVALID_* for input
// validation, *_NOT_FOUND for missing resources, NETWORK_*/TIMEOUT for
// transport trouble, INTERNAL_* for defects.
//
// Typical use:
//
//	err := errors.New(errors.ErrCodeInvalidAtom, "invalid atom: %s", raw)
//	if errors.Is(err, errors.ErrCodeInvalidAtom) { ... }
//	err = errors.Wrap(errors.ErrCodeInvalidIndex, cause, "load %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

const (
	// Input validation
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidAtom  Code = "INVALID_ATOM"
	ErrCodeInvalidIndex Code = "INVALID_INDEX"
	ErrCodeInvalidPlan  Code = "INVALID_PLAN"

	// Resolution
	ErrCodeNoSolution Code = "NO_SOLUTION"

	// Missing resources
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"
	ErrCodePlanNotFound    Code = "PLAN_NOT_FOUND"
	ErrCodeFileNotFound    Code = "FILE_NOT_FOUND"

	// Transport
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Defects
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeInvariant   Code = "INTERNAL_INVARIANT"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error pairs a Code with a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to the standard errors chain.
func (e *Error) Unwrap() error { return e.Cause }

// New builds a coded error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a coded error around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err (or anything it wraps) is an *Error carrying code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the code from err's chain, or "" for uncoded errors.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage strips the code prefix for display: coded errors yield their
// bare message, anything else its Error() text.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
