// Package coordinator fans a job out into one pipeline per source and collects
// every terminal outcome.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/loykin/streamhose/internal/dispatcher"
	"github.com/loykin/streamhose/internal/metrics"
	"github.com/loykin/streamhose/internal/pipeline"
	"github.com/loykin/streamhose/internal/source"
	"github.com/loykin/streamhose/internal/store"
)

type Coordinator struct {
	cfg           Config
	opener        source.Opener
	pipeline      *pipeline.Pipeline
	store         store.Store
	skipCompleted bool
	jobID         func() string
}

type Option func(*Coordinator)

// WithStore records every terminal outcome in the delivery ledger.
func WithStore(s store.Store) Option {
	return func(c *Coordinator) { c.store = s }
}

// WithSkipCompleted skips sources the ledger already reports as delivered.
// It has no effect without WithStore.
func WithSkipCompleted(skip bool) Option {
	return func(c *Coordinator) { c.skipCompleted = skip }
}

// WithJobID fixes the job identifier instead of generating a random one.
func WithJobID(id string) Option {
	return func(c *Coordinator) { c.jobID = func() string { return id } }
}

func New(cfg Config, opener source.Opener, sink dispatcher.Sink, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opener == nil {
		return nil, &dispatcher.ConfigurationError{Field: "opener", Reason: "must be set"}
	}
	p, err := pipeline.New(cfg.Pipeline, sink)
	if err != nil {
		return nil, err
	}
	c := &Coordinator{
		cfg:      cfg,
		opener:   opener,
		pipeline: p,
		jobID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run processes every descriptor concurrently and waits for all of them. A
// failing source never cancels its siblings. The returned result always holds
// one outcome per descriptor, in order; the error is a *JobError when any
// source failed.
func (c *Coordinator) Run(ctx context.Context, descriptors []source.Descriptor) (JobResult, error) {
	start := time.Now()
	res := JobResult{
		JobID:    c.jobID(),
		Outcomes: make([]pipeline.Outcome, len(descriptors)),
	}
	slog.Info("job started", "job", res.JobID, "sources", len(descriptors), "destination", c.cfg.Pipeline.Dispatcher.Destination)

	var g errgroup.Group
	if c.cfg.Concurrency > 0 {
		g.SetLimit(c.cfg.Concurrency)
	}
	for i, desc := range descriptors {
		g.Go(func() error {
			res.Outcomes[i] = c.process(ctx, res.JobID, desc)
			return nil
		})
	}
	_ = g.Wait()
	res.Duration = time.Since(start)

	if res.OK() {
		slog.Info("job completed", "job", res.JobID, "sources", res.Total(), "records", res.Delivered(), "duration", res.Duration)
		return res, nil
	}

	jobErr := &JobError{JobID: res.JobID, Total: res.Total()}
	for _, o := range res.Outcomes {
		if !o.OK() {
			jobErr.Failed = append(jobErr.Failed, o)
		}
	}
	slog.Error("job failed", "job", res.JobID, "failed", res.Failed(), "succeeded", res.Succeeded(), "duration", res.Duration)
	return res, jobErr
}

func (c *Coordinator) process(ctx context.Context, jobID string, desc source.Descriptor) pipeline.Outcome {
	if c.alreadyDelivered(desc.Location) {
		metrics.IncPipelines(metrics.OutcomeSkipped)
		slog.Info("source skipped", "source", desc.Location, "reason", "already delivered")
		return pipeline.Outcome{Source: desc.Location, Skipped: true}
	}

	var out pipeline.Outcome
	r, err := c.opener.Open(ctx, desc.Location)
	if err != nil {
		out = pipeline.Outcome{Source: desc.Location, Err: &pipeline.SourceReadError{Source: desc.Location, Err: err}}
		metrics.IncPipelines(metrics.OutcomeFailed)
		slog.Error("source failed", "source", desc.Location, "error", out.Err)
	} else {
		out = c.pipeline.Run(ctx, desc.Location, r, desc.Compressed)
		if cerr := r.Close(); cerr != nil {
			slog.Warn("failed to close source", "source", desc.Location, "error", cerr)
		}
	}

	c.record(jobID, out)
	return out
}

func (c *Coordinator) alreadyDelivered(location string) bool {
	if c.store == nil || !c.skipCompleted {
		return false
	}
	e, found, err := c.store.Load(location)
	if err != nil {
		slog.Warn("failed to load delivery", "source", location, "error", err)
		return false
	}
	return found && e.Completed()
}

func (c *Coordinator) record(jobID string, out pipeline.Outcome) {
	if c.store == nil {
		return
	}
	e := store.Entry{
		JobID:     jobID,
		Source:    out.Source,
		Status:    store.StatusCompleted,
		Records:   out.Records,
		Delivered: out.Delivered,
	}
	if out.Err != nil {
		e.Status = store.StatusFailed
		e.Error = out.Err.Error()
	}
	if err := c.store.Save(e); err != nil {
		slog.Warn("failed to record delivery", "source", out.Source, "error", err)
	}
}

// IsJobError reports whether err is a JobError.
func IsJobError(err error) bool {
	var jobErr *JobError
	return errors.As(err, &jobErr)
}
