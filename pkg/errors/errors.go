// Package errors defines the sentinel errors shared across the engine and a
// small wrapper type carrying a human-readable message alongside the sentinel.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrOverflow indicates a value exceeds an encoding's representable range.
	// It is always surfaced to the caller, never silently truncated.
	ErrOverflow = errors.New("value out of range for encoding")
	// ErrNotFound indicates an unknown sub-file, term, or document.
	ErrNotFound = errors.New("not found")
	// ErrUnknownField indicates a query referenced a field absent from the schema.
	ErrUnknownField = errors.New("unknown field")
	// ErrCapability indicates a field lacks a capability a query requires,
	// e.g. phrase search against a non-positional field. Raised at query
	// compile time, never as a silent empty result.
	ErrCapability = errors.New("field does not support required capability")
	// ErrParse indicates the query string could not be parsed.
	ErrParse = errors.New("query parse error")
	// ErrCorrupt indicates a segment's on-disk data failed validation. Fatal
	// for that segment only; other segments remain readable.
	ErrCorrupt = errors.New("corrupt segment data")
	// ErrWriterClosed indicates an operation on a committed or cancelled writer.
	ErrWriterClosed = errors.New("writer is closed")
	// ErrWorkerUnresponsive indicates an indexing worker failed to report its
	// run before the result timeout expired.
	ErrWorkerUnresponsive = errors.New("indexing worker unresponsive")
	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
)

// EngineError pairs a sentinel with a contextual message.
type EngineError struct {
	Err     error
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *EngineError {
	return &EngineError{Err: sentinel, Message: message}
}

func Newf(sentinel error, format string, args ...any) *EngineError {
	return &EngineError{Err: sentinel, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err wraps the given sentinel.
func Is(err, sentinel error) bool {
	return errors.Is(err, sentinel)
}
