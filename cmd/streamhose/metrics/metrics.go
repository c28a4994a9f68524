package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	flushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamhose",
			Subsystem: "sink",
			Name:      "flush_total",
			Help:      "Total number of batch calls with at least one record.",
		},
		[]string{"sink"},
	)
	flushFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamhose",
			Subsystem: "sink",
			Name:      "flush_failures_total",
			Help:      "Total number of failed batch calls, after retries.",
		},
		[]string{"sink"},
	)
	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamhose",
			Subsystem: "sink",
			Name:      "retries_total",
			Help:      "Total number of batch call attempts repeated after a failure.",
		},
		[]string{"sink"},
	)
	batchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "streamhose",
			Subsystem: "sink",
			Name:      "flush_batch_size",
			Help:      "Number of records per batch call.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
		},
		[]string{"sink"},
	)
	flushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "streamhose",
			Subsystem: "sink",
			Name:      "flush_duration_seconds",
			Help:      "Duration of sink batch calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"sink"},
	)
)

// Register registers sink-related metrics to the provided Prometheus registerer.
// Safe to call multiple times; AlreadyRegistered is ignored.
func Register(r prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		flushTotal, flushFailuresTotal, retriesTotal, batchSize, flushDuration,
	}
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// SinkRetried increments the retry counter for a sink.
func SinkRetried(sink string) {
	if sink == "" {
		sink = "unknown"
	}
	retriesTotal.WithLabelValues(sink).Inc()
}

// SinkFlushObserve records a flush metrics set: batch size, duration, and success/failure counts.
func SinkFlushObserve(sink string, size int, dur time.Duration, success bool) {
	if sink == "" {
		sink = "unknown"
	}
	if size > 0 {
		batchSize.WithLabelValues(sink).Observe(float64(size))
		flushTotal.WithLabelValues(sink).Inc()
	}
	flushDuration.WithLabelValues(sink).Observe(dur.Seconds())
	if !success {
		flushFailuresTotal.WithLabelValues(sink).Inc()
	}
}
