package pluginrpc

import "fmt"

// Standard JSON-RPC 2.0 error codes, plus REQUEST_CANCELLED which
// spec §4.5 calls out as implementation-defined but stable.
const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeInternalError   = -32603
	CodeRequestCancelled = -32001
)

// Error is the error type handlers return; it carries the JSON-RPC
// code it should be reported with. A handler that returns a plain Go
// error is reported as CodeInternalError.
type Error struct {
	Code    int
	Message string
	Data    any
}

func (e *Error) Error() string { return e.Message }

// NewError builds an Error with an explicit code.
func NewError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Cancelled builds the error a handler returns after observing its
// context was cancelled (spec §4.5 "RpcError::cancelled()").
func Cancelled(msg string) *Error {
	return &Error{Code: CodeRequestCancelled, Message: msg}
}

// InvalidParams builds an INVALID_PARAMS error for malformed params.
func InvalidParams(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// errorToWire converts any error returned by a handler into a wire
// error object, preserving the code on an *Error and defaulting to
// CodeInternalError for anything else (spec §7 "no error is
// swallowed").
func errorToWire(err error) *WireError {
	if e, ok := err.(*Error); ok {
		return &WireError{Code: e.Code, Message: e.Message, Data: e.Data}
	}
	return &WireError{Code: CodeInternalError, Message: err.Error()}
}
