// Package streamhose provides a simplified, stable root-level API for external users.
//
// Instead of importing internal subpackages, consumers can just:
//
//	import "github.com/loykin/streamhose"
//
// and then use streamhose.NewCoordinator and streamhose.Config directly.
package streamhose

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/streamhose/internal/coordinator"
	"github.com/loykin/streamhose/internal/dispatcher"
	"github.com/loykin/streamhose/internal/metrics"
	"github.com/loykin/streamhose/internal/pipeline"
	"github.com/loykin/streamhose/internal/source"
	"github.com/loykin/streamhose/internal/store"
)

// Config re-exports coordinator.Config for convenient use from the module root.
// This is a type alias, so it's fully compatible with the underlying type.
type Config = coordinator.Config

// Coordinator re-exports coordinator.Coordinator.
type Coordinator = coordinator.Coordinator

type (
	Option    = coordinator.Option
	JobResult = coordinator.JobResult
	JobError  = coordinator.JobError
	Outcome   = pipeline.Outcome
)

// Sink is the batch-ingestion contract: one call per batch to a named destination.
type Sink = dispatcher.Sink

// SinkFunc adapts a plain function to Sink.
type SinkFunc = dispatcher.SinkFunc

type (
	Descriptor = source.Descriptor
	Opener     = source.Opener
	OpenerFunc = source.OpenerFunc
	FileOpener = source.FileOpener
	S3Opener   = source.S3Opener
	Router     = source.Router
)

// Failure policies for sink call errors.
const (
	FailurePolicyAbort    = dispatcher.FailurePolicyAbort
	FailurePolicyContinue = dispatcher.FailurePolicyContinue
)

// Describe builds a Descriptor, inferring compression from a ".gz" suffix.
func Describe(location string) Descriptor { return source.Describe(location) }

// Glob expands include patterns into sorted local file paths.
func Glob(include, exclude []string) ([]string, error) { return source.Glob(include, exclude) }

// NewCoordinator constructs a new Coordinator using the provided configuration.
// It is a thin wrapper around coordinator.New.
func NewCoordinator(cfg Config, opener Opener, sink Sink, opts ...Option) (*Coordinator, error) {
	return coordinator.New(cfg, opener, sink, opts...)
}

// WithStore records outcomes in the delivery ledger.
func WithStore(s store.Store) Option { return coordinator.WithStore(s) }

// WithSkipCompleted skips sources the ledger reports as delivered.
func WithSkipCompleted(skip bool) Option { return coordinator.WithSkipCompleted(skip) }

// NewSQLiteStore opens (and migrates) a SQLite delivery ledger at dbPath.
func NewSQLiteStore(dbPath string) (store.Store, error) { return store.NewSQLiteStore(dbPath) }

// Error classification helpers.
var (
	IsConfigurationError = dispatcher.IsConfigurationError
	IsSinkCallError      = dispatcher.IsSinkCallError
	IsSourceReadError    = pipeline.IsSourceReadError
	IsDecompressionError = pipeline.IsDecompressionError
	IsJobError           = coordinator.IsJobError
)

// StartMetrics registers streamhose metrics on the default Prometheus registry and starts an HTTP server.
// It returns a stop function to gracefully shut down the metrics server.
func StartMetrics(addr string) (func() error, error) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}
	srv, err := metrics.Start(addr)
	if err != nil {
		return nil, err
	}
	return srv.Stop, nil
}
