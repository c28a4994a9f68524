// Package pipeline runs one source stream through optional decompression,
// line splitting and batch dispatch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"

	"github.com/loykin/streamhose/internal/dispatcher"
	"github.com/loykin/streamhose/internal/metrics"
	"github.com/loykin/streamhose/internal/splitter"
)

// Outcome is the terminal result of one stream. A stream either succeeds as a
// whole or fails; the counters of a failed stream are diagnostics only.
type Outcome struct {
	Source    string
	Records   int // records accepted from the stream
	Delivered int // records acknowledged by the sink
	Failed    int // records in failed calls under the continue policy
	SinkCalls int
	Bytes     int64 // raw bytes read from the source
	Duration  time.Duration
	Skipped   bool
	Err       error
}

// OK reports whether the stream completed (or was skipped) without error.
func (o Outcome) OK() bool { return o.Err == nil }

// Pipeline holds the settings shared by every stream it runs. A Pipeline keeps
// no per-stream state and may run many streams concurrently.
type Pipeline struct {
	cfg  Config
	sink dispatcher.Sink
}

// New validates cfg and returns a Pipeline delivering to sink.
func New(cfg Config, sink dispatcher.Sink) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, &dispatcher.ConfigurationError{Field: "sink", Reason: "must be set"}
	}
	return &Pipeline{cfg: cfg, sink: sink}, nil
}

// Run reads r to the end in ChunkSize steps, gunzipping first when compressed
// is set, and delivers every record. The next chunk is read only after the
// records of the previous one were accepted, and flushed when due.
func (p *Pipeline) Run(ctx context.Context, source string, r io.Reader, compressed bool) Outcome {
	start := time.Now()
	ctx = dispatcher.WithSource(ctx, source)
	metrics.IncActivePipelines()
	defer metrics.DecActivePipelines()

	src := &sourceReader{r: r}
	sp := splitter.New([]byte(p.cfg.Separator))
	d, err := dispatcher.New(p.cfg.Dispatcher, p.sink)
	if err != nil {
		return p.finish(Outcome{Source: source, Err: err}, start, src, nil)
	}

	out := Outcome{Source: source}
	out.Err = p.stream(ctx, source, src, compressed, sp, d)
	if out.Err == nil {
		out.Records, out.Err = d.Close(ctx)
	}
	return p.finish(out, start, src, d)
}

func (p *Pipeline) stream(ctx context.Context, source string, src *sourceReader, compressed bool, sp *splitter.Splitter, d *dispatcher.Dispatcher) error {
	var reader io.Reader = src
	if compressed {
		zr, err := gzip.NewReader(src)
		if err != nil {
			return classify(source, src, true, err)
		}
		defer func() { _ = zr.Close() }()
		reader = zr
	}

	buf := make([]byte, p.cfg.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stream %s interrupted: %w", source, err)
		}
		n, err := reader.Read(buf)
		if n > 0 {
			for rec := range sp.Feed(buf[:n]) {
				if aerr := d.Accept(ctx, rec); aerr != nil {
					return aerr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return classify(source, src, compressed, err)
		}
	}

	for rec := range sp.Finish() {
		if err := d.Accept(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) finish(out Outcome, start time.Time, src *sourceReader, d *dispatcher.Dispatcher) Outcome {
	out.Duration = time.Since(start)
	out.Bytes = src.n
	if d != nil {
		out.Records = d.Accepted()
		out.Delivered = d.Delivered()
		out.Failed = d.Failed()
		out.SinkCalls = d.Calls()
	}
	if out.Err != nil {
		metrics.IncPipelines(metrics.OutcomeFailed)
		slog.Error("source failed",
			"source", out.Source,
			"accepted", out.Records,
			"delivered", out.Delivered,
			"bytes", humanize.Bytes(uint64(out.Bytes)),
			"error", out.Err)
		return out
	}
	metrics.IncPipelines(metrics.OutcomeCompleted)
	slog.Info("source delivered",
		"source", out.Source,
		"records", out.Records,
		"calls", out.SinkCalls,
		"failed", out.Failed,
		"bytes", humanize.Bytes(uint64(out.Bytes)),
		"duration", out.Duration)
	return out
}

// classify attributes a read error either to the underlying source or to the
// gzip stage layered on top of it.
func classify(source string, src *sourceReader, compressed bool, err error) error {
	if src.err != nil {
		return &SourceReadError{Source: source, Err: src.err}
	}
	if compressed {
		return &DecompressionError{Source: source, Err: err}
	}
	return &SourceReadError{Source: source, Err: err}
}

// sourceReader counts raw bytes and remembers the source's own read failure.
type sourceReader struct {
	r   io.Reader
	n   int64
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.n += int64(n)
	metrics.AddBytes(n)
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
	}
	return n, err
}
