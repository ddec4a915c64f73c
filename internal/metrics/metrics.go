// Package metrics defines and registers the Prometheus metrics the
// brain server exposes on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brain_api_requests_total",
			Help: "Total number of API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brain_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Entry metrics
	EntriesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brain_entries_created_total",
			Help: "Total number of entries created by type",
		},
		[]string{"type"},
	)

	EntriesRecalledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brain_entries_recalled_total",
			Help: "Total number of entry recalls",
		},
	)

	// Classification metrics
	ClassificationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "brain_classification_duration_seconds",
			Help:    "Time taken to classify a project's task graph in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TasksByClassification = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brain_tasks_total",
			Help: "Tasks observed in the last classification run by project and classification",
		},
		[]string{"project", "classification"},
	)

	CyclesDetected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brain_dependency_cycles",
			Help: "Dependency cycles found in the last classification run by project",
		},
		[]string{"project"},
	)

	// Claim metrics
	ClaimsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brain_claims_active",
			Help: "Currently held task claims by project",
		},
		[]string{"project"},
	)

	ClaimConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brain_claim_conflicts_total",
			Help: "Total number of claim attempts rejected because another runner holds the task",
		},
	)

	StaleClaimOverridesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brain_stale_claim_overrides_total",
			Help: "Total number of stale claims taken over by another runner",
		},
	)

	// Backend metrics
	BackendUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brain_backend_up",
			Help: "Whether the rich notebook backend answered the last probe (1 = up)",
		},
	)

	DBUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brain_db_up",
			Help: "Whether the metadata database answered the last probe (1 = up)",
		},
	)
)

func init() {
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(EntriesCreatedTotal)
	prometheus.MustRegister(EntriesRecalledTotal)
	prometheus.MustRegister(ClassificationDuration)
	prometheus.MustRegister(TasksByClassification)
	prometheus.MustRegister(CyclesDetected)
	prometheus.MustRegister(ClaimsActive)
	prometheus.MustRegister(ClaimConflictsTotal)
	prometheus.MustRegister(StaleClaimOverridesTotal)
	prometheus.MustRegister(BackendUp)
	prometheus.MustRegister(DBUp)
}

// ObserveClassification records one classification run's gauges
func ObserveClassification(project string, byClass map[string]int, cycles int, seconds float64) {
	ClassificationDuration.Observe(seconds)
	for class, n := range byClass {
		TasksByClassification.WithLabelValues(project, class).Set(float64(n))
	}
	CyclesDetected.WithLabelValues(project).Set(float64(cycles))
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
