// Package errors provides a structured error type with wrapping and metadata
package errors

// Always import the project errors package as perr (platform/errors)

import (
	stderrs "errors"
	"fmt"
)

// ErrorCode defines supported error codes used across the client
// Values are stable; add sparingly
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodePanic is for recovered panics
	ErrorCodePanic

	// ErrorCodeConfig is for configuration files that are missing or unparseable
	ErrorCodeConfig

	// ErrorCodeValidation is for values that parsed but failed validation
	ErrorCodeValidation

	// ErrorCodeInvalidArgument is for bad input parameters
	ErrorCodeInvalidArgument

	// ErrorCodeConnection is for dial, handshake and transport failures
	ErrorCodeConnection

	// ErrorCodeUnauthorized is for the server refusing the namespace connect
	ErrorCodeUnauthorized

	// ErrorCodeEmit is for events that could not be written or were never acknowledged
	// because the connection went away
	ErrorCodeEmit

	// ErrorCodeTimeout is for waits that ran past their deadline
	ErrorCodeTimeout

	// ErrorCodeProtocol is for malformed or unsupported wire packets
	ErrorCodeProtocol

	// ErrorCodeJSON is for JSON encoding/decoding errors
	ErrorCodeJSON

	// ErrorCodeRemote is for errors reported by the server inside an ack
	ErrorCodeRemote
)

// String returns a short lowercase label for logs
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodePanic:
		return "panic"
	case ErrorCodeConfig:
		return "config"
	case ErrorCodeValidation:
		return "validation"
	case ErrorCodeInvalidArgument:
		return "invalid_argument"
	case ErrorCodeConnection:
		return "connection"
	case ErrorCodeUnauthorized:
		return "unauthorized"
	case ErrorCodeEmit:
		return "emit"
	case ErrorCodeTimeout:
		return "timeout"
	case ErrorCodeProtocol:
		return "protocol"
	case ErrorCodeJSON:
		return "json"
	case ErrorCodeRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Exit statuses follow sysexits(3) where one fits
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitSoftware    = 70
	ExitUnavailable = 69
	ExitTempFail    = 75
	ExitProtocol    = 76
	ExitNoPerm      = 77
	ExitConfig      = 78
)

// ExitCodeFor turns an ErrorCode into a process exit status
func ExitCodeFor(c ErrorCode) int {
	switch c {
	case ErrorCodeConfig, ErrorCodeValidation, ErrorCodeInvalidArgument:
		return ExitConfig
	case ErrorCodeConnection, ErrorCodeEmit:
		return ExitUnavailable
	case ErrorCodeUnauthorized:
		return ExitNoPerm
	case ErrorCodeTimeout:
		return ExitTempFail
	case ErrorCodeProtocol, ErrorCodeJSON:
		return ExitProtocol
	case ErrorCodeRemote:
		return ExitSoftware
	default:
		return ExitFailure
	}
}

// Error is the structured error type with wrapping and metadata
// msg is human/developer facing; code is machine facing
// field is optional (for validation); op is optional operation tag
// orig is the wrapped cause
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
	op    string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Message returns the message without the wrapped cause
func (e *Error) Message() string { return e.msg }

// Field returns the offending field, if any
func (e *Error) Field() string { return e.field }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// ExitCode returns the mapped process exit status for any error; nil is success
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return ExitCodeFor(CodeOf(err))
}

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is re-exports errors.Is so call sites need a single import
func Is(err, target error) bool { return stderrs.Is(err, target) }

// Mutators (copy-on-write)

// WithField attaches a field to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// WithOp attaches an operation label to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// Sugar

// Configf returns a configuration error
func Configf(format string, a ...any) error { return Newf(ErrorCodeConfig, format, a...) }

// InvalidArgf returns an invalid argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// Connectionf returns a connection error
func Connectionf(format string, a ...any) error { return Newf(ErrorCodeConnection, format, a...) }

// Unauthorizedf returns an unauthorized error
func Unauthorizedf(format string, a ...any) error { return Newf(ErrorCodeUnauthorized, format, a...) }

// Emitf returns an emit error
func Emitf(format string, a ...any) error { return Newf(ErrorCodeEmit, format, a...) }

// Timeoutf returns a timeout error
func Timeoutf(format string, a ...any) error { return Newf(ErrorCodeTimeout, format, a...) }

// Protocolf returns a protocol error
func Protocolf(format string, a ...any) error { return Newf(ErrorCodeProtocol, format, a...) }

// JSONErrf returns a JSON error
func JSONErrf(format string, a ...any) error { return Newf(ErrorCodeJSON, format, a...) }

// Remotef returns a remote (server reported) error
func Remotef(format string, a ...any) error { return Newf(ErrorCodeRemote, format, a...) }

// PanicErrf returns a panic error
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }
