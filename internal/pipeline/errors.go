package pipeline

import (
	"errors"
	"fmt"
)

// SourceReadError indicates an I/O failure while opening or reading a source stream.
type SourceReadError struct {
	Source string
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("read source %s: %v", e.Source, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// IsSourceReadError reports whether err is or wraps a SourceReadError.
func IsSourceReadError(err error) bool {
	var readErr *SourceReadError
	return errors.As(err, &readErr)
}

// DecompressionError indicates malformed or truncated compressed input.
type DecompressionError struct {
	Source string
	Err    error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("decompress source %s: %v", e.Source, e.Err)
}

func (e *DecompressionError) Unwrap() error { return e.Err }

// IsDecompressionError reports whether err is or wraps a DecompressionError.
func IsDecompressionError(err error) bool {
	var decErr *DecompressionError
	return errors.As(err, &decErr)
}
