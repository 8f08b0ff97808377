// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-netevent.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	// ErrWouldBlock is control flow, not a failure: the socket cannot make
	// progress right now and the caller must resume on a later tick.
	ErrWouldBlock = errors.New("operation would block")

	ErrTransportClosed   = errors.New("transport is closed")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrTruncated         = errors.New("datagram truncated")
	ErrUnregisteredTag   = errors.New("unregistered type tag")
	ErrDuplicateTag      = errors.New("type tag already registered")
	ErrInvalidTag        = errors.New("invalid type tag")
	ErrRegistryFrozen    = errors.New("registry is frozen")
	ErrChannelClosed     = errors.New("channel is closed")
	ErrChannelFull       = errors.New("channel is full")
	ErrPollerClosed      = errors.New("poller is closed")
	ErrEncode            = errors.New("payload encode failed")
	ErrBuilderUsed       = errors.New("builder already built")
	ErrSocketFailed      = errors.New("socket failed")
	ErrNotSupported      = errors.New("operation not supported")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeSetup
	ErrCodeFatalIO
	ErrCodeMalformed
	ErrCodeRouting
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeSetup:
		return "setup"
	case ErrCodeFatalIO:
		return "fatal_io"
	case ErrCodeMalformed:
		return "malformed"
	case ErrCodeRouting:
		return "routing"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error around cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.Err = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or
// ErrCodeInternal if there is none.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsFatal reports whether err terminates the component that returned it.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case ErrCodeFatalIO, ErrCodeSetup:
		return true
	}
	return false
}
