package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for form submissions.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeIgnored  = "ignored"
	OutcomeFailed   = "failed"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec

	// Form submission metrics
	Submissions  *prometheus.CounterVec
	HashLatency  *prometheus.HistogramVec
	HashFailures *prometheus.CounterVec

	// Session store metrics
	SessionOperations *prometheus.CounterVec
	SessionLatency    *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		RequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "form",
			Name:      "submissions_total",
			Help:      "Total number of form submissions by outcome",
		}, []string{"outcome"}),
		HashLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "form",
			Name:      "hash_duration_seconds",
			Help:      "Time spent computing password hashes",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"algorithm"}),
		HashFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "form",
			Name:      "hash_failures_total",
			Help:      "Total number of failed hash computations",
		}, []string{"algorithm"}),

		SessionOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "operations_total",
			Help:      "Total number of session store operations",
		}, []string{"operation", "status"}),
		SessionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "operation_duration_seconds",
			Help:      "Duration of session store operations",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
		}, []string{"operation"}),
	}
}
