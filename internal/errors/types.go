// Package errors defines the error taxonomy used across forge: per-file
// transformation failures, prerequisite failures, supervised process
// failures, cleanup failures and configuration errors.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeTransform    ErrorType = "transform"
	ErrorTypePrerequisite ErrorType = "prerequisite"
	ErrorTypeProcess      ErrorType = "process"
	ErrorTypeCleanup      ErrorType = "cleanup"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeTask         ErrorType = "task"
)

// ForgeError is a structured error type with context.
type ForgeError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Task    string
	Path    string
}

// Error implements the error interface.
func (e *ForgeError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Task != "" {
		parts = append(parts, "task:"+e.Task)
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ForgeError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinel values can be compared with
// errors.Is.
func (e *ForgeError) Is(target error) bool {
	var t *ForgeError
	if errors.As(target, &t) {
		return e.Type == t.Type && (t.Code == "" || e.Code == t.Code)
	}

	return false
}

// WithTask adds the task name.
func (e *ForgeError) WithTask(task string) *ForgeError {
	e.Task = task
	return e
}

// WithPath adds the file the error is about.
func (e *ForgeError) WithPath(path string) *ForgeError {
	e.Path = path
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrPrerequisiteFailed = &ForgeError{Type: ErrorTypePrerequisite, Code: "PREREQ_FAILED"}
	ErrUnknownTask        = &ForgeError{Type: ErrorTypeTask, Code: "UNKNOWN_TASK"}
	ErrCycle              = &ForgeError{Type: ErrorTypeTask, Code: "CYCLE"}
)

// NewTransformError reports a single input file failing a pipeline step.
func NewTransformError(path, message string, cause error) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeTransform,
		Code:    "TRANSFORM_FAILED",
		Message: message,
		Cause:   cause,
		Path:    path,
	}
}

// NewPrerequisiteError reports that task was not started because dep did
// not complete successfully.
func NewPrerequisiteError(task, dep string) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypePrerequisite,
		Code:    "PREREQ_FAILED",
		Message: fmt.Sprintf("prerequisite %q did not complete", dep),
		Task:    task,
	}
}

// NewTaskError wraps a failure returned by a task action.
func NewTaskError(task string, cause error) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeTask,
		Code:    "TASK_FAILED",
		Message: "task failed",
		Cause:   cause,
		Task:    task,
	}
}

// NewUnknownTaskError reports a reference to a task that is not registered.
func NewUnknownTaskError(task string) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeTask,
		Code:    "UNKNOWN_TASK",
		Message: fmt.Sprintf("task %q is not defined", task),
		Task:    task,
	}
}

// NewProcessError reports a supervised process failure.
func NewProcessError(message string, cause error) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeProcess,
		Code:    "PROCESS_FAILED",
		Message: message,
		Cause:   cause,
	}
}

// NewCleanupError reports a file that could not be removed.
func NewCleanupError(path string, cause error) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeCleanup,
		Code:    "CLEANUP_FAILED",
		Message: "could not remove file",
		Cause:   cause,
		Path:    path,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *ForgeError {
	return &ForgeError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsConfigError checks if an error came from loading the configuration.
func IsConfigError(err error) bool {
	var fe *ForgeError
	return errors.As(err, &fe) && fe.Type == ErrorTypeConfig
}

// IsTransformError checks if an error is a per-file transformation error.
func IsTransformError(err error) bool {
	var fe *ForgeError
	if errors.As(err, &fe) {
		return fe.Type == ErrorTypeTransform
	}
	return false
}

// IsPrerequisiteError checks if an error comes from a skipped task.
func IsPrerequisiteError(err error) bool {
	var fe *ForgeError
	if errors.As(err, &fe) {
		return fe.Type == ErrorTypePrerequisite
	}
	return false
}
