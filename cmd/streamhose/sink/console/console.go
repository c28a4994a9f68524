package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/loykin/streamhose/cmd/streamhose/sink/common"
)

// writerSink writes each record as one line. Batches from concurrent sources
// are written whole, never interleaved.
type writerSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
}

// New returns a console sink writing to stdout or stderr depending on stream.
// stream: "stdout" (default) or "stderr".
func New(stream string) common.Sink {
	var w io.Writer = os.Stdout
	if stream == "stderr" {
		w = os.Stderr
	}
	return newWriterSink(w, nil)
}

// NewFile creates (or truncates) path and writes records to it.
func NewFile(path string) (common.Sink, error) {
	if path == "" {
		return nil, errors.New("file sink requires a path")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("file sink open failed: %w", err)
	}
	return newWriterSink(f, f), nil
}

func newWriterSink(w io.Writer, closer io.Closer) *writerSink {
	return &writerSink{w: bufio.NewWriter(w), closer: closer}
}

func (s *writerSink) PutRecordBatch(_ context.Context, _ string, records [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if _, err := s.w.Write(rec); err != nil {
			return err
		}
		if err := s.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return s.w.Flush()
}

func (s *writerSink) MaxBatchSize() int { return 0 }

func (s *writerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
