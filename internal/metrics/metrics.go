// Package metrics holds the Prometheus collectors for pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jobscout"

var (
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Pipeline runs by outcome.",
	}, []string{"status"})

	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a complete pipeline run.",
		Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600, 1200},
	})

	ListingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listings_total",
		Help:      "Listings left after each pipeline stage.",
	}, []string{"stage"})

	SourceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_errors_total",
		Help:      "Source collections that failed and contributed nothing.",
	}, []string{"source"})

	AIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_requests_total",
		Help:      "AI opinion requests by outcome.",
	}, []string{"provider", "status"})

	AIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ai_request_duration_seconds",
		Help:      "Duration of a single AI opinion request.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	LedgerOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ledger_operation_duration_seconds",
		Help:      "Duration of ledger operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"driver", "operation", "status"})
)

// MustRegister registers every collector with the given registerer.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RunsTotal,
		RunDuration,
		ListingsTotal,
		SourceErrors,
		AIRequests,
		AIRequestDuration,
		LedgerOperationDuration,
	)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveRun records the outcome and duration of one pipeline run.
func ObserveRun(start time.Time, err error) {
	RunsTotal.WithLabelValues(status(err)).Inc()
	RunDuration.Observe(time.Since(start).Seconds())
}

// ObserveStage adds the number of listings that survived a stage.
func ObserveStage(stage string, left int) {
	if stage == "" {
		stage = "unknown"
	}
	ListingsTotal.WithLabelValues(stage).Add(float64(left))
}

// IncSourceError counts a failed source collection.
func IncSourceError(source string) {
	if source == "" {
		source = "unknown"
	}
	SourceErrors.WithLabelValues(source).Inc()
}

// ObserveAIRequest records one AI opinion request.
func ObserveAIRequest(provider string, start time.Time, err error) {
	if provider == "" {
		provider = "unknown"
	}
	AIRequests.WithLabelValues(provider, status(err)).Inc()
	AIRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// ObserveLedger records the duration and status of a ledger operation.
func ObserveLedger(driver, operation string, start time.Time, err error) {
	if driver == "" {
		driver = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	LedgerOperationDuration.WithLabelValues(driver, operation, status(err)).Observe(time.Since(start).Seconds())
}
