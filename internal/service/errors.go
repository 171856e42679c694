package service

import (
	"errors"
	"fmt"
)

// Service errors - sentinel errors callers check with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in TaskServiceError
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrTaskNotFound indicates the requested task does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrParentNotFound indicates a new subtask references a missing parent.
	// API layer should map this to HTTP 404 Not Found.
	ErrParentNotFound = errors.New("parent task not found")

	// ErrNotCreator indicates a user other than the task's creator attempted
	// a creator-only operation such as deletion.
	// API layer should map this to HTTP 403 Forbidden.
	ErrNotCreator = errors.New("only the task creator can perform this operation")

	// ErrInvalidInput indicates the request carried invalid values or referenced
	// rows that do not exist. API layer should map this to HTTP 400 Bad Request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrHierarchyCycle indicates the parent chain or subtree of a task loops
	// back on itself.
	ErrHierarchyCycle = errors.New("task hierarchy contains a cycle")

	// ErrHierarchyTooDeep indicates a traversal exceeded the configured depth limit.
	ErrHierarchyTooDeep = errors.New("task hierarchy exceeds maximum depth")
)

// TaskServiceError is a custom error type for unexpected task service failures.
type TaskServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
func NewTaskServiceError(operation, message string, err error) *TaskServiceError {
	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// isExpected reports whether err is one of the sentinels that should reach
// the caller unwrapped.
func isExpected(err error) bool {
	return errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrParentNotFound) ||
		errors.Is(err, ErrNotCreator) ||
		errors.Is(err, ErrInvalidInput)
}

// wrapErr leaves expected sentinels alone and wraps everything else.
func wrapErr(operation, message string, err error) error {
	if err == nil || isExpected(err) {
		return err
	}
	var svcErr *TaskServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	return NewTaskServiceError(operation, message, err)
}
