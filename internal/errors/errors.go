// Package errors provides the coded error type shared by the session layer,
// the event codec and the relay transports.
package errors

import "fmt"

// Code is a machine-readable error class.
type Code string

const (
	// CodeConnection is a backend-reported connection failure. It is fatal to
	// the session but never to the process.
	CodeConnection Code = "CONNECTION_ERROR"

	// CodeOperationRejected covers room name conflicts, closed or full rooms,
	// missing rooms, no random match, invalid arguments and malformed
	// responses.
	CodeOperationRejected Code = "OPERATION_REJECTED"

	// CodeInvalidState is returned when an operation is attempted in an
	// incompatible lifecycle state.
	CodeInvalidState Code = "INVALID_STATE"

	// CodeInvalidShape is a codec precondition failure (jagged grid, cell
	// count not matching dimensions).
	CodeInvalidShape Code = "INVALID_SHAPE"

	// CodeUnsupportedPayloadType is returned for values outside the closed
	// payload set.
	CodeUnsupportedPayloadType Code = "UNSUPPORTED_PAYLOAD_TYPE"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrConnection             = &Error{Code: CodeConnection}
	ErrOperationRejected      = &Error{Code: CodeOperationRejected}
	ErrInvalidState           = &Error{Code: CodeInvalidState}
	ErrInvalidShape           = &Error{Code: CodeInvalidShape}
	ErrUnsupportedPayloadType = &Error{Code: CodeUnsupportedPayloadType}
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error class
	Message  string            // Human-readable detail
	Status   int32             // Backend status code, 0 when the error is local
	Metadata map[string]string // Additional context (operation, state, ...)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithStatus creates a domain error carrying a backend status code.
func WithStatus(code Code, status int32, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// WithMetadata creates a domain error with metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there
// is none.
func CodeOf(err error) Code {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
