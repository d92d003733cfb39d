package schemas

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel capability adapters wrap when a page, intent or
// transition does not exist. The engine uses it to tell "absent" apart from a
// backend failure.
var ErrNotFound = errors.New("not found")

// ErrorCode is the wire-level failure taxonomy shared by every exposed
// operation.
type ErrorCode string

const (
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"
	ErrPageNotFound     ErrorCode = "PAGE_NOT_FOUND"
	ErrIntentNotFound   ErrorCode = "INTENT_NOT_FOUND"
	ErrPathNotFound     ErrorCode = "PATH_NOT_FOUND"
	ErrGraph            ErrorCode = "GRAPH_ERROR"
	ErrVectorStore      ErrorCode = "VECTOR_STORE_ERROR"
)

// EngineError carries a taxonomy code alongside the human-readable message.
// Capability failures are wrapped, never swallowed.
type EngineError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError builds an EngineError with a formatted message.
func NewEngineError(code ErrorCode, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapEngineError attaches a taxonomy code to an underlying capability error.
func WrapEngineError(code ErrorCode, err error, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the taxonomy code from err, defaulting to GRAPH_ERROR for
// untyped failures.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ErrGraph
}
