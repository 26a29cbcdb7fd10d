// Package errors provides structured error handling for BuildFlow.
// It implements errors with codes, context, and stack traces.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Error codes for programmatic handling
type Code string

const (
	// Input errors (1xx)
	CodeDockerfileNotFound Code = "E101"
	CodeContextNotFound    Code = "E102"
	CodeInvalidReference   Code = "E103"

	// Engine errors (2xx)
	CodeEngineNotFound  Code = "E201"
	CodeEngineStart     Code = "E202"
	CodeEngineExit      Code = "E203"
	CodeEngineStream    Code = "E204"
	CodeBuildFailed     Code = "E205"
	CodeVerifyFailed    Code = "E206"

	// Configuration errors (3xx)
	CodeConfigLoad  Code = "E301"
	CodeConfigWrite Code = "E302"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"
	CodeTimeout         Code = "E402"
	CodeWatchFailed     Code = "E403"

	// Unknown
	CodeUnknown Code = "E999"
)

// BuildFlowError is the base error type for all BuildFlow errors.
type BuildFlowError struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *BuildFlowError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		sb.WriteString(" (")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, v))
			first = false
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *BuildFlowError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target error.
func (e *BuildFlowError) Is(target error) bool {
	if t, ok := target.(*BuildFlowError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *BuildFlowError) WithContext(key string, value interface{}) *BuildFlowError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new BuildFlowError.
func New(code Code, message string) *BuildFlowError {
	return &BuildFlowError{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *BuildFlowError {
	if err == nil {
		return nil
	}

	return &BuildFlowError{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *BuildFlowError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// captureStack captures the current stack trace.
func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *BuildFlowError) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// --- Convenience constructors ---

// DockerfileNotFound creates a missing Dockerfile error.
func DockerfileNotFound(path string) *BuildFlowError {
	return New(CodeDockerfileNotFound, "Dockerfile not found").WithContext("path", path)
}

// EngineNotFound creates an error for a missing builder binary.
func EngineNotFound(binary string) *BuildFlowError {
	return New(CodeEngineNotFound, "build engine not found in PATH").WithContext("binary", binary)
}

// BuildFailed creates an error for a build reported failed by the engine.
func BuildFailed(detail string) *BuildFlowError {
	return New(CodeBuildFailed, "build failed").WithContext("detail", detail)
}

// ContextCanceled creates a cancellation error.
func ContextCanceled(operation string) *BuildFlowError {
	return New(CodeContextCanceled, "operation canceled").
		WithContext("operation", operation)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var bfErr *BuildFlowError
	if errors.As(err, &bfErr) {
		return bfErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var bfErr *BuildFlowError
	if errors.As(err, &bfErr) {
		return bfErr.Code
	}
	return CodeUnknown
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
