package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy decisions: which kinds are
// returned synchronously to callers and how transports map them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindPermission    Kind = "permission"
	KindStateConflict Kind = "state_conflict"
	KindExpired       Kind = "expired"
	KindSystem        Kind = "system"
)

// Error carries a stable machine-readable code plus a human-readable message.
// Internal causes stay wrapped and are never surfaced to callers directly.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Permission(code, message string) *Error {
	return New(KindPermission, code, message)
}

func StateConflict(code, message string) *Error {
	return New(KindStateConflict, code, message)
}

func Expired(code, message string) *Error {
	return New(KindExpired, code, message)
}

// System wraps an infrastructure failure. The cause is preserved for logs and
// manual reconciliation but excluded from user-facing rendering.
func System(code, message string, cause error) *Error {
	return &Error{Kind: KindSystem, Code: code, Message: message, cause: cause}
}

// KindOf reports the kind of err, or KindSystem when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

// CodeOf reports the stable code of err, or "SYSTEM_ERROR" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "SYSTEM_ERROR"
}

// MessageOf reports the user-visible message of err. Foreign errors render a
// generic message so storage details never leak to callers.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

func IsValidation(err error) bool    { return IsKind(err, KindValidation) }
func IsNotFound(err error) bool      { return IsKind(err, KindNotFound) }
func IsPermission(err error) bool    { return IsKind(err, KindPermission) }
func IsStateConflict(err error) bool { return IsKind(err, KindStateConflict) }
func IsExpired(err error) bool       { return IsKind(err, KindExpired) }
func IsSystem(err error) bool        { return IsKind(err, KindSystem) }
