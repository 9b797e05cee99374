// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the playground server.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunBuckets covers compiler invocations from a few milliseconds up to the
// longest configured timeouts.
var RunBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

var (
	// HTTPRequestsTotal counts HTTP requests by method, route and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playground_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playground_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: RunBuckets,
		},
		[]string{"method", "path"},
	)

	// RunsTotal counts compiler runs by outcome.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playground_runs_total",
			Help: "Compiler runs",
		},
		[]string{"outcome"},
	)

	// RunDuration records compiler wall time, queueing excluded.
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playground_run_duration_seconds",
			Help:    "Compiler run duration",
			Buckets: RunBuckets,
		},
		[]string{"outcome"},
	)

	// RunsInFlight tracks compiler runs currently executing or queued.
	RunsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "playground_runs_in_flight",
			Help: "Runs in flight",
		},
	)

	// RunQueueWait records how long runs waited for a free compiler slot.
	RunQueueWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "playground_run_queue_wait_seconds",
			Help:    "Time spent waiting for a compiler slot",
			Buckets: RunBuckets,
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playground_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RunsTotal,
		RunDuration,
		RunsInFlight,
		RunQueueWait,
		RateLimitRejectedTotal,
	)
}

// RecordRun records the outcome and timings of a finished run.
func RecordRun(outcome string, duration, queueWait time.Duration) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	RunQueueWait.Observe(queueWait.Seconds())
}
