package dispatcher

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid setting detected before any stream runs.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// SinkCallError reports a rejected or failed batch-ingestion call. Delivered is
// the number of records of the stream that reached the sink before the failure.
type SinkCallError struct {
	Destination string
	Delivered   int
	BatchSize   int
	Err         error
}

func (e *SinkCallError) Error() string {
	return fmt.Sprintf("sink call to %s failed (batch of %d, %d records delivered before failure): %v",
		e.Destination, e.BatchSize, e.Delivered, e.Err)
}

func (e *SinkCallError) Unwrap() error { return e.Err }

// IsSinkCallError reports whether err is or wraps a SinkCallError.
func IsSinkCallError(err error) bool {
	var sinkErr *SinkCallError
	return errors.As(err, &sinkErr)
}

// ErrClosed is returned by Accept after Close.
var ErrClosed = errors.New("dispatcher closed")
