// Package dispatcher groups records into batches and delivers them to a
// batch-ingestion sink without ever exceeding the sink's per-call cap.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/streamhose/internal/metrics"
)

// Sink is a batch-ingestion backend. PutRecordBatch delivers records, in order,
// to destination in a single call; len(records) never exceeds the configured cap.
// Implementations must not retain records after returning.
type Sink interface {
	PutRecordBatch(ctx context.Context, destination string, records [][]byte) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ctx context.Context, destination string, records [][]byte) error

func (f SinkFunc) PutRecordBatch(ctx context.Context, destination string, records [][]byte) error {
	return f(ctx, destination, records)
}

// Dispatcher owns the pending batch of one stream. It is not safe for concurrent use.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	pending [][]byte

	accepted  int
	delivered int
	failed    int
	calls     int
	closed    bool
	err       error // sticky after an aborted flush
}

// New validates cfg and returns a Dispatcher delivering to sink.
func New(cfg Config, sink Sink) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = FailurePolicyAbort
	}
	return &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		pending: make([][]byte, 0, cfg.FlushThreshold),
	}, nil
}

// Accept appends rec to the pending batch and flushes as soon as the batch
// reaches the flush threshold. The flush runs before Accept returns, so a slow
// sink holds back the caller.
func (d *Dispatcher) Accept(ctx context.Context, rec []byte) error {
	if d.closed {
		return ErrClosed
	}
	if d.err != nil {
		return d.err
	}
	d.pending = append(d.pending, rec)
	d.accepted++
	metrics.IncRecords(1)
	if len(d.pending) >= d.cfg.FlushThreshold {
		return d.flushPending(ctx)
	}
	return nil
}

// Flush sends records to the sink in order, in consecutive calls of at most
// MaxBatchSize records. Under the abort policy the first failed call stops
// delivery and the remaining records are never attempted.
func (d *Dispatcher) Flush(ctx context.Context, records [][]byte) error {
	for len(records) > 0 {
		n := min(len(records), d.cfg.MaxBatchSize)
		batch := records[:n]

		start := time.Now()
		err := d.sink.PutRecordBatch(ctx, d.cfg.Destination, batch)
		d.calls++
		metrics.ObserveSinkCall(n, time.Since(start), err == nil)

		if err != nil {
			if d.cfg.FailurePolicy != FailurePolicyContinue {
				return &SinkCallError{
					Destination: d.cfg.Destination,
					Delivered:   d.delivered,
					BatchSize:   n,
					Err:         err,
				}
			}
			d.failed += n
			slog.Error("sink call failed; continuing",
				"destination", d.cfg.Destination, "records", n, "delivered", d.delivered, "error", err)
		} else {
			d.delivered += n
		}
		records = records[n:]
	}
	return nil
}

// Close flushes whatever is still pending and returns the number of records
// accepted over the dispatcher's lifetime.
func (d *Dispatcher) Close(ctx context.Context) (int, error) {
	if d.closed {
		return d.accepted, d.err
	}
	d.closed = true
	if d.err != nil {
		return d.accepted, d.err
	}
	if err := d.flushPending(ctx); err != nil {
		return d.accepted, err
	}
	return d.accepted, nil
}

func (d *Dispatcher) flushPending(ctx context.Context) error {
	err := d.Flush(ctx, d.pending)
	clear(d.pending)
	d.pending = d.pending[:0]
	if err != nil {
		d.err = err
	}
	return err
}

// Accepted returns the number of records accepted so far.
func (d *Dispatcher) Accepted() int { return d.accepted }

// Delivered returns the number of records the sink acknowledged.
func (d *Dispatcher) Delivered() int { return d.delivered }

// Failed returns the number of records in failed calls (continue policy only).
func (d *Dispatcher) Failed() int { return d.failed }

// Calls returns the number of sink calls issued.
func (d *Dispatcher) Calls() int { return d.calls }

// Pending returns the number of records waiting for the next flush.
func (d *Dispatcher) Pending() int { return len(d.pending) }
