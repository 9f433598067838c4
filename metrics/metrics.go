package metrics

import (
	"github.com/livepeer/transcode-engine/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics is the set of Prometheus collectors exported by
// cmd/transcodectl's /metrics endpoint: one struct, built once via
// promauto, its package-level Metrics var wired in at init time.
type EngineMetrics struct {
	Version *prometheus.CounterVec

	SessionsSubmitted *prometheus.CounterVec
	SessionsCancelled *prometheus.CounterVec
	SessionsFinished  prometheus.Counter
	SessionsFailed    *prometheus.CounterVec
	SessionsInFlight  prometheus.Gauge
	SessionsPreempted prometheus.Counter
	EncodeLatencySec  prometheus.Histogram
}

func NewMetrics() *EngineMetrics {
	m := &EngineMetrics{
		Version: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "version",
			Help: "Current Git SHA / Tag that's running. Incremented once on app startup.",
		}, []string{"app", "version"}),

		SessionsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sessions_submitted_total",
			Help: "Number of sessions submitted to the scheduler, by submitter",
		}, []string{"submitter"}),
		SessionsCancelled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sessions_cancelled_total",
			Help: "Number of sessions cancelled, by submitter",
		}, []string{"submitter"}),
		SessionsFinished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sessions_finished_total",
			Help: "Number of sessions that reached a clean end-of-stream",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sessions_failed_total",
			Help: "Number of sessions that failed, by error taxonomy category",
		}, []string{"category"}),
		SessionsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sessions_in_flight",
			Help: "Number of sessions currently tracked by the scheduler",
		}),
		SessionsPreempted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sessions_preempted_total",
			Help: "Number of paused notifications delivered to session clients",
		}),
		EncodeLatencySec: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "encode_latency_seconds",
			Help:    "Wall-clock time from session start to finish",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}

	m.Version.WithLabelValues("transcode-engine", config.Version).Inc()
	return m
}

var Metrics = NewMetrics()
