package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/loykin/streamhose/cmd/streamhose/sink/clickhouse"
	"github.com/loykin/streamhose/cmd/streamhose/sink/common"
	"github.com/loykin/streamhose/cmd/streamhose/sink/console"
	"github.com/loykin/streamhose/cmd/streamhose/sink/firehose"
	"github.com/loykin/streamhose/cmd/streamhose/sink/opensearch"
)

// Sink is the common sink interface from subpackages.
type Sink = common.Sink

// buildSink constructs the configured backend, wrapped with retries and
// per-sink metrics.
func buildSink(ctx context.Context, cfg *Config) (Sink, error) {
	s, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s = common.Retry(s, cfg.Sink.Type, cfg.Sink.Retry)
	return common.Instrument(s, cfg.Sink.Type), nil
}

func newBackend(ctx context.Context, cfg *Config) (Sink, error) {
	host := common.Hostname(cfg.Sink.Host)
	switch cfg.Sink.Type {
	case "console":
		return console.New(strings.ToLower(cfg.Sink.Console.Stream)), nil
	case "file":
		return console.NewFile(cfg.Sink.File.Path)
	case "firehose":
		return firehose.New(ctx, cfg.Sink.Firehose)
	case "clickhouse":
		return clickhouse.New(cfg.Sink.ClickHouse, cfg.Job.Pipeline.Dispatcher.Destination, host, cfg.Sink.Labels)
	case "opensearch":
		return opensearch.New(cfg.Sink.OpenSearch, host, cfg.Sink.Labels)
	default:
		return nil, fmt.Errorf("unsupported sink: %s", cfg.Sink.Type)
	}
}
