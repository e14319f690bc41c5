package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrToolUnavailable indicates an agent tool could not produce evidence
	ErrToolUnavailable = errors.New("tool unavailable")

	// ErrInvalidInput indicates invalid request parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")
)

// ToolUnavailableError reports a failed tool invocation. It is recoverable:
// the run continues and the role proceeds without the tool's evidence.
type ToolUnavailableError struct {
	Tool string
	Err  error
}

// Error implements the error interface
func (e *ToolUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool %s unavailable: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("tool %s unavailable", e.Tool)
}

// Unwrap returns the wrapped error
func (e *ToolUnavailableError) Unwrap() error {
	return e.Err
}

// Is matches the ErrToolUnavailable sentinel
func (e *ToolUnavailableError) Is(target error) bool {
	return target == ErrToolUnavailable
}

// ToolUnavailable wraps err as a recoverable tool failure
func ToolUnavailable(tool string, err error) error {
	return &ToolUnavailableError{Tool: tool, Err: err}
}

// GenerationError reports a model generation failure for a named role.
// It aborts the run; no partial report is produced.
type GenerationError struct {
	Role string
	Err  error
}

// Error implements the error interface
func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed for %s: %v", e.Role, e.Err)
	}
	return fmt.Sprintf("generation failed for %s", e.Role)
}

// Unwrap returns the wrapped error
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// GenerationFailed wraps err as a run-aborting generation failure
func GenerationFailed(role string, err error) error {
	return &GenerationError{Role: role, Err: err}
}

// ConfigError reports a fatal startup configuration problem, such as a
// missing credential. The process must not accept requests.
type ConfigError struct {
	Reason string
	Err    error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// Unwrap returns the wrapped error
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config creates a configuration error
func Config(reason string) error {
	return &ConfigError{Reason: reason}
}

// Configf creates a formatted configuration error
func Configf(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// ConfigWrap wraps err as a configuration error
func ConfigWrap(err error, reason string) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Reason: reason, Err: err}
}

// IsConfig reports whether err is a configuration error
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
