// Package splitter cuts an arriving byte stream into separator-delimited records.
package splitter

import (
	"bytes"
	"iter"
)

// DefaultSeparator is the record terminator used when none is configured.
const DefaultSeparator = "\n"

// Splitter buffers the undelimited tail between chunk arrivals and emits
// complete records in arrival order. It is not safe for concurrent use; each
// stream owns its own Splitter.
type Splitter struct {
	sep      []byte
	tail     []byte // never contains a complete separator once a Feed sequence is drained
	scanned  int    // tail[:scanned] holds no separator start; searches resume there
	finished bool
}

// New returns a Splitter cutting on sep. An empty sep falls back to DefaultSeparator.
func New(sep []byte) *Splitter {
	if len(sep) == 0 {
		sep = []byte(DefaultSeparator)
	}
	return &Splitter{sep: bytes.Clone(sep)}
}

// Feed appends chunk to the buffered tail and returns the records it completes.
// Records are cut from the buffer only as the sequence is consumed: breaking out
// of the range loop early leaves the remaining records buffered for the next
// Feed or Finish. Each record is a private copy without its separator.
func (s *Splitter) Feed(chunk []byte) iter.Seq[[]byte] {
	if len(chunk) > 0 {
		s.tail = append(s.tail, chunk...)
	}
	return func(yield func([]byte) bool) {
		defer s.compact()
		for {
			idx := bytes.Index(s.tail[s.scanned:], s.sep)
			if idx < 0 {
				s.scanned = max(0, len(s.tail)-len(s.sep)+1)
				return
			}
			idx += s.scanned
			s.scanned = 0
			rec := bytes.Clone(s.tail[:idx])
			if rec == nil {
				rec = []byte{}
			}
			s.tail = s.tail[idx+len(s.sep):]
			if !yield(rec) {
				return
			}
		}
	}
}

// Finish drains any complete records left behind by an abandoned Feed sequence
// and then yields the final undelimited tail, if any. Nothing extra is yielded
// when the stream ended exactly on a separator. Finish is meant to be called
// once per stream; later calls yield nothing.
func (s *Splitter) Finish() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if s.finished {
			return
		}
		for rec := range s.Feed(nil) {
			if !yield(rec) {
				return
			}
		}
		s.finished = true
		if len(s.tail) == 0 {
			return
		}
		rec := bytes.Clone(s.tail)
		s.tail = nil
		s.scanned = 0
		yield(rec)
	}
}

// Buffered returns the length of the partial tail awaiting a separator.
func (s *Splitter) Buffered() int { return len(s.tail) }

// compact releases the consumed prefix of the backing array.
func (s *Splitter) compact() {
	if len(s.tail) == 0 {
		s.tail = nil
		return
	}
	if cap(s.tail) > 2*len(s.tail) {
		s.tail = append([]byte{}, s.tail...)
	}
}
