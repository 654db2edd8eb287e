// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps a formatted cause into base.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Series errors
	ErrMalformedSeries     = &Error{Code: "MALFORMED_SERIES", Message: "malformed series"}
	ErrInsufficientHistory = &Error{Code: "INSUFFICIENT_HISTORY", Message: "insufficient history for window"}
	ErrMissingColumn       = &Error{Code: "MISSING_COLUMN", Message: "column not found"}
	ErrEmptySeries         = &Error{Code: "EMPTY_SERIES", Message: "series has no rows"}
	ErrInvalidParameter    = &Error{Code: "INVALID_PARAMETER", Message: "invalid parameter"}

	// Pipeline errors
	ErrDependencyMissing = &Error{Code: "DEPENDENCY_MISSING", Message: "indicator dependency not satisfied"}

	// Data errors
	ErrNoData          = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrCollectorFailed = &Error{Code: "COLLECTOR_FAILED", Message: "collector failed"}
	ErrStorageFailed   = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}

	// Model errors
	ErrPredictorFailed = &Error{Code: "PREDICTOR_FAILED", Message: "prediction failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
