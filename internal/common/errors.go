// Package common defines shared sentinel errors and the closed set of error
// kinds used across msgbox layers. Callers should use errors.Is / errors.As
// (or KindOf) to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrAlreadyExists = errors.New("already exists")
	ErrUnknownField  = errors.New("unknown field")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Permission table lookups outside the known roles/commands.
	ErrUnknownRole    = errors.New("unknown role")
	ErrUnknownCommand = errors.New("unknown command")
)

// Kind classifies a failure. The set is closed: every error surfaced to a
// client maps to exactly one Kind, or is treated as unexpected.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindPermission
	KindBusiness
	KindStorage
	KindProtocol
	KindConnection
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindBusiness:
		return "business"
	case KindStorage:
		return "storage"
	case KindProtocol:
		return "protocol"
	case KindConnection:
		return "connection"
	default:
		return "unexpected"
	}
}

// Code returns the machine-readable error code sent on the wire.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindPermission:
		return "PERMISSION_ERROR"
	case KindBusiness:
		return "BUSINESS_LOGIC_ERROR"
	case KindStorage:
		return "STORAGE_ERROR"
	case KindProtocol:
		return "PROTOCOL_ERROR"
	case KindConnection:
		return "CONNECTION_ERROR"
	default:
		return "PROCESSING_ERROR"
	}
}

// Error is a classified failure. Msg is safe to show to the user; Err, when
// set, carries the underlying cause for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Validation reports malformed or out-of-bounds input.
func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

// Permission reports a failed role or login-state precondition.
func Permission(format string, args ...any) *Error {
	return newError(KindPermission, format, args...)
}

// Business reports a domain rule violation (mailbox full, duplicate user...).
func Business(format string, args ...any) *Error {
	return newError(KindBusiness, format, args...)
}

// Protocol reports a malformed wire envelope.
func Protocol(format string, args ...any) *Error {
	return newError(KindProtocol, format, args...)
}

// Storage wraps a backend read/write failure.
func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Msg: "storage failure", Err: err}
}

// Connection wraps a transport reset or timeout.
func Connection(err error) *Error {
	return &Error{Kind: KindConnection, Msg: "connection failure", Err: err}
}

// KindOf returns the Kind of err, or KindUnexpected when err is not a
// classified *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}
