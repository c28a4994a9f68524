package common

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

type flakySink struct {
	failures int
	calls    int
	closed   bool
	onCall   func()
}

func (f *flakySink) PutRecordBatch(_ context.Context, _ string, _ [][]byte) error {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if f.calls <= f.failures {
		return errors.New("ServiceUnavailableException")
	}
	return nil
}

func (f *flakySink) MaxBatchSize() int { return 500 }
func (f *flakySink) Close() error     { f.closed = true; return nil }

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetry_RecoversAfterTransientFailures(t *testing.T) {
	base := &flakySink{failures: 2}
	s := Retry(base, "test", fastRetry(3))
	if err := s.PutRecordBatch(context.Background(), "stream", [][]byte{[]byte("a")}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if base.calls != 3 {
		t.Fatalf("calls = %d, want 3", base.calls)
	}
	if s.MaxBatchSize() != 500 {
		t.Fatalf("MaxBatchSize should pass through, got %d", s.MaxBatchSize())
	}
	_ = s.Close()
	if !base.closed {
		t.Fatal("Close should reach the wrapped sink")
	}
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	base := &flakySink{failures: 10}
	s := Retry(base, "test", fastRetry(3))
	err := s.PutRecordBatch(context.Background(), "stream", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 3 {
		t.Fatalf("calls = %d, want 3", base.calls)
	}
	if got := err.Error(); got != "after 3 attempts: ServiceUnavailableException" {
		t.Fatalf("unexpected error: %q", got)
	}
}

func TestRetry_DisabledReturnsSameSink(t *testing.T) {
	base := &flakySink{failures: 1}
	s := Retry(base, "test", fastRetry(1))
	if s != Sink(base) {
		t.Fatal("max-attempts 1 should not wrap the sink")
	}
	if err := s.PutRecordBatch(context.Background(), "stream", nil); err == nil {
		t.Fatal("expected the single failure to surface")
	}
}

func TestRetry_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	base := &flakySink{failures: 10, onCall: cancel}
	s := Retry(base, "test", fastRetry(5))
	if err := s.PutRecordBatch(ctx, "stream", nil); err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("calls = %d, want 1 after cancellation", base.calls)
	}
}

func TestRetryConfigValidate(t *testing.T) {
	var c RetryConfig
	c.Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	c.MaxAttempts = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for max-attempts 0")
	}
	c = RetryConfig{MaxAttempts: 2, InitialInterval: time.Second, MaxInterval: time.Millisecond}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error when max-interval < initial-interval")
	}
}

func TestInstrument_PassesThrough(t *testing.T) {
	base := &flakySink{failures: 1}
	s := Instrument(base, "test")
	if err := s.PutRecordBatch(context.Background(), "stream", [][]byte{[]byte("x")}); err == nil {
		t.Fatal("expected first call to fail")
	}
	if err := s.PutRecordBatch(context.Background(), "stream", [][]byte{[]byte("x")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("calls = %d, want 2", base.calls)
	}
}

func TestHostname(t *testing.T) {
	if got := Hostname("edge-1"); got != "edge-1" {
		t.Fatalf("Hostname(override) = %q", got)
	}
	want, _ := os.Hostname()
	if got := Hostname(""); got != want {
		t.Fatalf("Hostname() = %q, want %q", got, want)
	}
}
