package common

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	cmdmetrics "github.com/loykin/streamhose/cmd/streamhose/metrics"
)

// RetryConfig controls how failed batch calls are repeated. A repeated call
// may deliver the same records twice.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max-attempts"` // 1 disables retries
	InitialInterval time.Duration `mapstructure:"initial-interval"`
	MaxInterval     time.Duration `mapstructure:"max-interval"`
}

func (c *RetryConfig) Default() {
	c.MaxAttempts = 3
	c.InitialInterval = 200 * time.Millisecond
	c.MaxInterval = 5 * time.Second
}

func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("sink.retry.max-attempts must be >= 1")
	}
	if c.MaxAttempts > 1 && (c.InitialInterval <= 0 || c.MaxInterval < c.InitialInterval) {
		return fmt.Errorf("sink.retry intervals must be > 0 and max-interval >= initial-interval")
	}
	return nil
}

type retrySink struct {
	Sink
	name string
	cfg  RetryConfig
}

// Retry repeats failed batch calls with exponential backoff. Context
// cancellation ends the retries with the last call's error.
func Retry(s Sink, name string, cfg RetryConfig) Sink {
	if cfg.MaxAttempts <= 1 {
		return s
	}
	return &retrySink{Sink: s, name: name, cfg: cfg}
}

func (r *retrySink) PutRecordBatch(ctx context.Context, destination string, records [][]byte) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.cfg.InitialInterval
	eb.MaxInterval = r.cfg.MaxInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.cfg.MaxAttempts-1)), ctx)

	attempt := 0
	var last error
	err := backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			cmdmetrics.SinkRetried(r.name)
		}
		last = r.Sink.PutRecordBatch(ctx, destination, records)
		if last != nil && ctx.Err() != nil {
			return backoff.Permanent(last)
		}
		return last
	}, policy)
	if err == nil {
		return nil
	}
	if last == nil {
		return err
	}
	if attempt > 1 {
		slog.Warn("sink call failed after retries", "sink", r.name, "destination", destination, "attempts", attempt, "error", last)
		return fmt.Errorf("after %d attempts: %w", attempt, last)
	}
	return last
}
