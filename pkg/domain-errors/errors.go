// Package domainerrors defines the typed errors services return to transport layers.
//
// Stores return sentinel errors (pkg/platform/sentinel); services translate those into
// coded errors here, and transport maps codes to status codes in one place.
package domainerrors

import (
	"errors"
	"time"
)

// Code classifies an error for the transport layer.
type Code string

const (
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeValidation         Code = "validation_error"
	CodeWeakPassword       Code = "weak_password"
	CodeRateLimited        Code = "rate_limited"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeConfiguration      Code = "configuration_error"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
)

// Error carries a code, a caller-safe message, and the optional underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
	// RetryAfter is set for CodeRateLimited.
	RetryAfter time.Duration
	// Details lists machine-readable reasons, e.g. password policy violations.
	Details []string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same code and message, so tests can use
// errors.Is(err, New(code, msg)).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithDetails builds a coded error that also carries a list of reasons.
func WithDetails(code Code, msg string, details []string) error {
	return &Error{Code: code, Message: msg, Details: details}
}

// RateLimited builds a CodeRateLimited error carrying a retry hint.
func RateLimited(msg string, retryAfter time.Duration) error {
	return &Error{Code: CodeRateLimited, Message: msg, RetryAfter: retryAfter}
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost *Error in the chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// RetryAfterOf returns the retry hint of a rate-limited error.
func RetryAfterOf(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.Code == CodeRateLimited {
		return e.RetryAfter, true
	}
	return 0, false
}

// DetailsOf returns the reasons attached to err, if any.
func DetailsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// MessageOf returns the caller-safe message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
