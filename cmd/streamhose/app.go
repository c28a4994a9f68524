package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"

	cmdmetrics "github.com/loykin/streamhose/cmd/streamhose/metrics"
	"github.com/loykin/streamhose/internal/coordinator"
	"github.com/loykin/streamhose/internal/metrics"
	"github.com/loykin/streamhose/internal/source"
	"github.com/loykin/streamhose/internal/store"
)

// app owns the long-lived resources of one command invocation.
type app struct {
	cfg         *Config
	sink        Sink
	store       store.Store
	opener      source.Opener
	stopMetrics func() error
}

func newApp(ctx context.Context, cfg *Config) (*app, error) {
	a := &app{cfg: cfg, opener: newOpener(cfg.Source.S3), stopMetrics: func() error { return nil }}

	if cfg.Prometheus.Enable {
		// Register our metrics explicitly to the default registry to avoid library init-time side effects
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return nil, fmt.Errorf("failed to register prometheus metrics: %w", err)
		}
		if err := cmdmetrics.Register(prometheus.DefaultRegisterer); err != nil {
			return nil, fmt.Errorf("failed to register sink metrics: %w", err)
		}
		srv, err := metrics.Start(cfg.Prometheus.Addr)
		if err != nil {
			return nil, fmt.Errorf("failed to start prometheus endpoint: %w", err)
		}
		a.stopMetrics = srv.Stop
	}

	if cfg.Store.Enable {
		st, err := store.NewSQLiteStore(cfg.Store.DBPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open delivery ledger: %w", err)
		}
		a.store = st
	}

	s, err := buildSink(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create %s sink: %w", cfg.Sink.Type, err)
	}
	if limit := s.MaxBatchSize(); limit > 0 && cfg.Job.Pipeline.Dispatcher.MaxBatchSize > limit {
		_ = s.Close()
		a.Close()
		return nil, fmt.Errorf("job.max-batch-size %d exceeds the %s sink cap of %d",
			cfg.Job.Pipeline.Dispatcher.MaxBatchSize, cfg.Sink.Type, limit)
	}
	a.sink = s
	return a, nil
}

func (a *app) coordinator(opts ...coordinator.Option) (*coordinator.Coordinator, error) {
	if a.store != nil {
		opts = append([]coordinator.Option{
			coordinator.WithStore(a.store),
			coordinator.WithSkipCompleted(a.cfg.Store.SkipCompleted),
		}, opts...)
	}
	return coordinator.New(a.cfg.Job, a.opener, a.sink, opts...)
}

// Close releases everything newApp acquired; it is safe on a partially built app.
func (a *app) Close() {
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			slog.Warn("failed to close sink", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("failed to close delivery ledger", "error", err)
		}
	}
	_ = a.stopMetrics()
}

// newOpener routes plain paths and file:// to the local filesystem and s3://
// to S3. The S3 client is built on first use so purely local runs never load
// AWS configuration.
func newOpener(cfg S3Config) source.Opener {
	s3Opener := sync.OnceValues(func() (*source.S3Opener, error) {
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return source.NewS3Opener(awsCfg, cfg.Endpoint), nil
	})
	return source.Router{
		"file": source.FileOpener{},
		"s3": source.OpenerFunc(func(ctx context.Context, location string) (io.ReadCloser, error) {
			o, err := s3Opener()
			if err != nil {
				return nil, err
			}
			return o.Open(ctx, location)
		}),
	}
}
