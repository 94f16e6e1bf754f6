package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Burrow error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrStringNotFound     ErrorCode = "STRING_NOT_FOUND"    // 409 (edit target text absent)
	ErrCommandTimeout     ErrorCode = "COMMAND_TIMEOUT"     // 408
	ErrCancelled          ErrorCode = "CANCELLED"           // 499
	ErrSandboxUnavailable ErrorCode = "SANDBOX_UNAVAILABLE" // 503
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// Per-item codes used inside batch upload/download results. Item failures
// never abort the batch, so they are plain strings rather than errors.
const (
	ItemFileNotFound     = "FILE_NOT_FOUND"
	ItemIsDirectory      = "IS_DIRECTORY"
	ItemPermissionDenied = "PERMISSION_DENIED"
	ItemInvalidPath      = "INVALID_PATH"
)

// BurrowError represents a structured error with code, status, and details.
type BurrowError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *BurrowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *BurrowError {
	return &BurrowError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing file.
func NewNotFound(path string) *BurrowError {
	return &BurrowError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewStringNotFound creates a 409 error for an edit whose old string has zero
// occurrences. The stored content is left untouched in that case.
func NewStringNotFound(path string) *BurrowError {
	return &BurrowError{
		Code:    ErrStringNotFound,
		Status:  409,
		Message: fmt.Sprintf("string to replace not found in %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCommandTimeout creates a 408 error for a command that exceeded its timeout.
func NewCommandTimeout(seconds int) *BurrowError {
	return &BurrowError{
		Code:    ErrCommandTimeout,
		Status:  408,
		Message: fmt.Sprintf("command timed out after %d seconds", seconds),
		Details: map[string]any{"timeout_seconds": seconds},
	}
}

// NewCancelled creates a 499 error for an operation aborted by the caller.
// Cancellation is a distinct outcome: it must never be classified as a lost
// sandbox and must not trigger recreation.
func NewCancelled(operation string) *BurrowError {
	return &BurrowError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// NewSandboxUnavailable creates a 503 error for when no sandbox can be
// created (missing provider configuration or credentials).
func NewSandboxUnavailable(msg string) *BurrowError {
	return &BurrowError{
		Code:    ErrSandboxUnavailable,
		Status:  503,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the underlying error is kept in Details for
// logging so that internals never leak to tool callers.
func NewInternal(err error) *BurrowError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &BurrowError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error (possibly wrapped) is a BurrowError with the given code.
func Is(err error, code ErrorCode) bool {
	var bErr *BurrowError
	if stderrors.As(err, &bErr) {
		return bErr.Code == code
	}
	return false
}
