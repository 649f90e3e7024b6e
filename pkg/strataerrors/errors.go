// Package strataerrors provides structured error handling for strata with rich
// context, stack traces, and error categorization. It enables consistent error
// handling patterns across the entire codebase.
//
// # Overview
//
// The strataerrors package extends Go's standard error handling with:
//   - Error categorization through ErrorType
//   - Structured context with key-value details
//   - Automatic stack trace capture
//   - Error wrapping with cause preservation
//   - Recoverability detection
//
// # Error Types
//
// The conversion pipeline uses a closed taxonomy. Cell- and column-level issues
// (coercion, schema drift) are recovered locally and never surface as errors;
// the types exist so recovery sites can count and log them uniformly. Chunk- and
// file-level issues (dialect, chunk assembly, streaming unsupported) surface as a
// single per-file failure to the caller.
package strataerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error, used for error handling strategies,
// per-file failure reporting, and monitoring.
type ErrorType string

const (
	// ErrorTypeDialect indicates no parse strategy succeeded for a document. Fatal per file.
	ErrorTypeDialect ErrorType = "dialect"
	// ErrorTypeRecordParse indicates a single malformed line or array element. Recovered by skipping.
	ErrorTypeRecordParse ErrorType = "record_parse"
	// ErrorTypeCoercion indicates a value could not be cast to its field's resolved type. Recovered by null-filling the cell.
	ErrorTypeCoercion ErrorType = "coercion"
	// ErrorTypeSchemaDrift indicates a batch column could not be reconciled to the running output schema. Recovered by null-filling the column.
	ErrorTypeSchemaDrift ErrorType = "schema_drift"
	// ErrorTypeChunkAssembly indicates a whole chunk could not be turned into a batch. Fatal per file.
	ErrorTypeChunkAssembly ErrorType = "chunk_assembly"
	// ErrorTypeStreamingUnsupported indicates a large file's dialect cannot be streamed
	// and the eager fallback is refused to bound memory use. Fatal per file.
	ErrorTypeStreamingUnsupported ErrorType = "streaming_unsupported"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Error represents a structured error with context, providing rich debugging
// information and enabling per-type handling strategies.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack, capturing
// the function name, file path, and line number for debugging.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface, returning a formatted error message
// that includes the error type, message, and cause (if present).
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, enabling compatibility with errors.Is
// and errors.As for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error, providing additional context
// for debugging and monitoring. This method can be chained for adding multiple details.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, automatically
// capturing the call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context, preserving the original
// error as the cause. If the error is already a structured Error, its stack
// trace is preserved. Returns nil if the input error is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type, useful for error handling
// strategies and conditional logic based on error categories.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsFileFatal returns true if the error's type aborts the conversion of the
// current file. Cell- and column-level types are always recovered in place and
// should never reach a caller; seeing one here is treated as fatal too, since
// it means a recovery site leaked.
func IsFileFatal(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return true
	}
	switch e.Type {
	case ErrorTypeDialect, ErrorTypeChunkAssembly, ErrorTypeStreamingUnsupported,
		ErrorTypeConfig, ErrorTypeFile, ErrorTypeInternal:
		return true
	case ErrorTypeRecordParse, ErrorTypeCoercion, ErrorTypeSchemaDrift:
		return false
	default:
		return true
	}
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
