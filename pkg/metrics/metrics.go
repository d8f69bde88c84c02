package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue metrics
	QueueEntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tepantlatia_queue_entries_total",
			Help: "Total number of queue entries by queue and state",
		},
		[]string{"queue", "state"},
	)

	ClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tepantlatia_claims_total",
			Help: "Total number of successful claim_next calls by queue",
		},
		[]string{"queue"},
	)

	ClaimDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tepantlatia_claim_duration_seconds",
			Help:    "Time taken for a claim_next call in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StaleLocksReclaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tepantlatia_stale_locks_reclaimed_total",
			Help: "Total number of processing entries reclaimed by the stale-lock reaper",
		},
		[]string{"queue"},
	)

	// Processor metrics
	ItemsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tepantlatia_items_processed_total",
			Help: "Total number of items dispatched to a processor, by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tepantlatia_processing_duration_seconds",
			Help:    "Time taken to process one item in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	EmbeddingsGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tepantlatia_embeddings_generated_total",
			Help: "Total number of embedding vectors successfully generated",
		},
	)

	EmbeddingFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tepantlatia_embedding_failures_total",
			Help: "Total number of embedding requests that exhausted their retries",
		},
	)

	// Scheduler metrics
	ConsecutiveUpstreamErrors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tepantlatia_consecutive_upstream_errors",
			Help: "Current consecutive-upstream-error count for the primary queue",
		},
	)

	CircuitBreakerTripsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tepantlatia_circuit_breaker_trips_total",
			Help: "Total number of times the adaptive circuit breaker has opened",
		},
	)

	ThroughputItemsPerSec = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tepantlatia_throughput_items_per_second",
			Help: "Rolling successful-dispatch throughput in items per second",
		},
	)

	// Dashboard / HTTP metrics
	DashboardRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tepantlatia_dashboard_requests_total",
			Help: "Total number of dashboard HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	// Seeder metrics
	SeedUpsertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tepantlatia_seed_upserts_total",
			Help: "Total number of primary queue entries upserted by the seeder",
		},
	)
)

func init() {
	prometheus.MustRegister(QueueEntriesTotal)
	prometheus.MustRegister(ClaimsTotal)
	prometheus.MustRegister(ClaimDuration)
	prometheus.MustRegister(StaleLocksReclaimedTotal)
	prometheus.MustRegister(ItemsProcessedTotal)
	prometheus.MustRegister(ProcessingDuration)
	prometheus.MustRegister(EmbeddingsGeneratedTotal)
	prometheus.MustRegister(EmbeddingFailuresTotal)
	prometheus.MustRegister(ConsecutiveUpstreamErrors)
	prometheus.MustRegister(CircuitBreakerTripsTotal)
	prometheus.MustRegister(ThroughputItemsPerSec)
	prometheus.MustRegister(DashboardRequestsTotal)
	prometheus.MustRegister(SeedUpsertsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
