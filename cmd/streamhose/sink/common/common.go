package common

import (
	"context"
	"os"
)

// Sink is a batch-ingestion backend. PutRecordBatch delivers records to
// destination in one call and must not retain the slice after returning.
type Sink interface {
	PutRecordBatch(ctx context.Context, destination string, records [][]byte) error
	// MaxBatchSize is the backend's per-call record cap; 0 means unlimited.
	MaxBatchSize() int
	Close() error
}

// Hostname returns override when set, else the local host name.
func Hostname(override string) string {
	if override != "" {
		return override
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return ""
}
