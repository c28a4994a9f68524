package common

import (
	"context"
	"time"

	cmdmetrics "github.com/loykin/streamhose/cmd/streamhose/metrics"
)

type instrumentedSink struct {
	Sink
	name string
}

// Instrument records per-sink flush metrics for every batch call.
func Instrument(s Sink, name string) Sink {
	return &instrumentedSink{Sink: s, name: name}
}

func (i *instrumentedSink) PutRecordBatch(ctx context.Context, destination string, records [][]byte) error {
	start := time.Now()
	err := i.Sink.PutRecordBatch(ctx, destination, records)
	cmdmetrics.SinkFlushObserve(i.name, len(records), time.Since(start), err == nil)
	return err
}
