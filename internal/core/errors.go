package core

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a fatal engine error.
type ErrorCode string

const (
	CodeProfiling     ErrorCode = "E_PROFILING"     // unreadable or empty source
	CodeConfiguration ErrorCode = "E_CONFIGURATION" // bad mapping config, unknown authority
	CodeMapping       ErrorCode = "E_MAPPING"       // schema/config mismatch
	CodeBuild         ErrorCode = "E_BUILD"         // dangling edges and other build failures
	CodeExport        ErrorCode = "E_EXPORT"        // artifact serialization failure
)

// Error carries an engine error code, a retryability hint, and optional
// structured details (offending rows, fields, edges).
type Error struct {
	Code      ErrorCode
	Retryable bool
	Err       error
	Details   map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeValue returns the string error code for integration with run state.
func (e *Error) CodeValue() string { return string(e.Code) }

// RetryableStatus indicates if the run can be retried as-is.
func (e *Error) RetryableStatus() bool { return e.Retryable }

// NewError builds a coded error wrapping err.
func NewError(code ErrorCode, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Errorf builds a coded error from a format string.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the engine error code from err, or "" if err is not a
// coded engine error.
func CodeOf(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// IsCode reports whether err carries the given engine error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
