// internal/core/errors_test.go
package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "TEST_ERROR", Message: "test message"}
	if err.Error() != "[TEST_ERROR] test message" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Code: "WRAP", Message: "wrapped", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return cause")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(ErrMissingColumn, ErrMissingColumn) {
		t.Error("same error should match")
	}
	if errors.Is(ErrMissingColumn, ErrEmptySeries) {
		t.Error("different codes should not match")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original")
	wrapped := WrapError(ErrCollectorFailed, cause)
	if wrapped.Cause != cause {
		t.Error("cause not set")
	}
	if wrapped.Code != ErrCollectorFailed.Code {
		t.Error("code not preserved")
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(ErrInsufficientHistory, "window %d exceeds %d rows", 5, 3)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Error("Errorf should keep the base code")
	}
	want := "[INSUFFICIENT_HISTORY] insufficient history for window: window 5 exceeds 3 rows"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	wrapped := fmt.Errorf("sma: %w", err)
	if !errors.Is(wrapped, ErrInsufficientHistory) {
		t.Error("code should survive fmt wrapping")
	}
}
