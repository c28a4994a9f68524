package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline outcome label values.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

var (
	recordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamhose",
		Name:      "records_total",
		Help:      "Total number of records accepted from source streams.",
	})
	bytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamhose",
		Name:      "bytes_total",
		Help:      "Total number of raw bytes read from source streams (before decompression).",
	})
	sinkCallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamhose",
		Name:      "sink_calls_total",
		Help:      "Total number of batch-ingestion calls issued.",
	})
	sinkCallFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamhose",
		Name:      "sink_call_failures_total",
		Help:      "Total number of batch-ingestion calls that returned an error.",
	})
	sinkCallSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "streamhose",
		Name:      "sink_call_records",
		Help:      "Number of records per batch-ingestion call.",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
	})
	sinkCallDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "streamhose",
		Name:      "sink_call_duration_seconds",
		Help:      "Duration of batch-ingestion calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
	pipelinesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamhose",
		Name:      "pipelines_total",
		Help:      "Total number of source pipelines by terminal outcome.",
	}, []string{"outcome"})
	activePipelines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamhose",
		Name:      "active_pipelines",
		Help:      "Current number of source pipelines running.",
	})
)

// Register registers all streamhose metrics to the provided Prometheus registerer.
// It is safe to call multiple times; AlreadyRegisteredError will be ignored.
func Register(r prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		recordsTotal, bytesTotal, sinkCallsTotal, sinkCallFailuresTotal,
		sinkCallSize, sinkCallDuration, pipelinesTotal, activePipelines,
	}
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			var alreadyRegisteredError prometheus.AlreadyRegisteredError
			if errors.As(err, &alreadyRegisteredError) {
				continue
			}
			return err
		}
	}
	return nil
}

// IncRecords increments the accepted records counter by n.
func IncRecords(n int) {
	if n > 0 {
		recordsTotal.Add(float64(n))
	}
}

// AddBytes adds n to the bytes read counter.
func AddBytes(n int) {
	if n > 0 {
		bytesTotal.Add(float64(n))
	}
}

// ObserveSinkCall records one batch-ingestion call.
func ObserveSinkCall(size int, dur time.Duration, success bool) {
	sinkCallsTotal.Inc()
	sinkCallSize.Observe(float64(size))
	sinkCallDuration.Observe(dur.Seconds())
	if !success {
		sinkCallFailuresTotal.Inc()
	}
}

// IncPipelines counts a pipeline reaching the given terminal outcome.
func IncPipelines(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	pipelinesTotal.WithLabelValues(outcome).Inc()
}

// IncActivePipelines increments the active pipelines gauge by 1.
func IncActivePipelines() { activePipelines.Inc() }

// DecActivePipelines decrements the active pipelines gauge by 1.
func DecActivePipelines() { activePipelines.Dec() }
