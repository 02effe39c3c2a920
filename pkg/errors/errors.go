// Package errors defines the error taxonomy shared by the party services.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeAlreadyExists   Code = "ALREADY_EXISTS"
	CodeConflict        Code = "CONFLICT"
	CodeIllegalAction   Code = "ILLEGAL_ACTION"
	CodeIntegrity       Code = "INTEGRITY"
	CodeTimeout         Code = "TIMEOUT"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthorized    Code = "UNAUTHORIZED"
)

// Error is the domain error type. Two errors match under errors.Is when their codes match.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

var (
	ErrNotFound         = New(CodeNotFound, "not found")
	ErrSessionNotFound  = New(CodeNotFound, "session not found")
	ErrPlayerNotFound   = New(CodeNotFound, "player not found")
	ErrAlreadyExists    = New(CodeAlreadyExists, "already exists")
	ErrConflict         = New(CodeConflict, "unresolved concurrent write")
	ErrIllegalAction    = New(CodeIllegalAction, "illegal action")
	ErrIntegrity        = New(CodeIntegrity, "snapshot checksum mismatch")
	ErrTimeout          = New(CodeTimeout, "store call timed out")
	ErrRateLimited      = New(CodeRateLimited, "too many requests")
	ErrInvalidArgument  = New(CodeInvalidArgument, "invalid argument")
	ErrUnauthorized     = New(CodeUnauthorized, "unauthorized")
	ErrSessionFull      = New(CodeIllegalAction, "session is full")
	ErrGameAlreadyBegun = New(CodeIllegalAction, "game already started")
	ErrNotHost          = New(CodeUnauthorized, "only the host may do this")
)

// Illegal builds an IllegalAction error carrying a human readable reason.
func Illegal(reason string) *Error {
	return New(CodeIllegalAction, reason)
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Reason returns the message of an IllegalAction error, or the plain error text.
func Reason(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsRetryable reports whether a caller may retry after re-reading state.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeConflict, CodeTimeout:
		return true
	default:
		return false
	}
}
