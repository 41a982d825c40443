package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	requestsTotal         *prometheus.CounterVec
	requestLatencySeconds *prometheus.HistogramVec
	requestErrorsTotal    *prometheus.CounterVec
	unarchiveTotal        *prometheus.CounterVec
	actionInvocations     *prometheus.CounterVec
	actionDurationSeconds *prometheus.HistogramVec
	activityPublished     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the grader.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_requests_total",
			Help: "Total number of grading API requests served, by action mode where the route has one.",
		}, []string{"method", "route", "mode", "status"})

		requestLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grader_request_latency_seconds",
			Help:    "Latency distribution for grading API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		requestErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_request_errors_total",
			Help: "Total number of error responses returned by grading endpoints.",
		}, []string{"method", "route", "mode", "status"})

		unarchiveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_unarchive_total",
			Help: "Handin extractions by outcome (filtered, fallback, error).",
		}, []string{"result"})

		actionInvocations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_action_invocations_total",
			Help: "Grading action invocations by action, mode and result.",
		}, []string{"action", "mode", "result"})

		actionDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grader_action_duration_seconds",
			Help:    "Time spent performing grading actions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action", "mode"})

		activityPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_activity_published_total",
			Help: "Grading activity events published per transport.",
		}, []string{"transport", "result"})

		prometheus.MustRegister(
			requestsTotal,
			requestLatencySeconds,
			requestErrorsTotal,
			unarchiveTotal,
			actionInvocations,
			actionDurationSeconds,
			activityPublished,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// RequestLatency exposes the latency histogram for API requests.
func RequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatencySeconds
}

// RequestErrors exposes the counter for API error responses.
func RequestErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return requestErrorsTotal
}

// UnarchiveTotal exposes the handin extraction counter.
func UnarchiveTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return unarchiveTotal
}

// ActionInvocations exposes the action invocation counter.
func ActionInvocations() *prometheus.CounterVec {
	RegisterMetrics()
	return actionInvocations
}

// ActionDuration exposes the action duration histogram.
func ActionDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return actionDurationSeconds
}

// ActivityPublished exposes the activity publication counter.
func ActivityPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return activityPublished
}
