package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "warehouse_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for pipeline invocations.
type Metrics struct {
	Invocations        *prometheus.CounterVec   // labels: pipeline, outcome={success,success_with_errors,failure}
	InvocationDuration *prometheus.HistogramVec // labels: pipeline
	PipelinesRunning   prometheus.Gauge

	// Fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: pipeline, outcome={success,error}
	FetchDuration *prometheus.HistogramVec // labels: pipeline

	// Normalization metrics.
	RowsNormalized *prometheus.CounterVec // labels: pipeline
	RowsDropped    *prometheus.CounterVec // labels: pipeline, reason={invalid,out_of_range}

	// Warehouse metrics.
	RejectedRecords *prometheus.CounterVec // labels: pipeline
	Notifications   *prometheus.CounterVec // labels: pipeline, outcome={sent,error}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Invocations,
		m.InvocationDuration,
		m.PipelinesRunning,
		m.FetchRequests,
		m.FetchDuration,
		m.RowsNormalized,
		m.RowsDropped,
		m.RejectedRecords,
		m.Notifications,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Pipeline invocations by pipeline and outcome.",
		}, []string{"pipeline", "outcome"}),
		InvocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-load invocation.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"pipeline"}),
		PipelinesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipelines_running",
			Help:      "Number of pipeline invocations currently in flight.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Upstream fetch requests by pipeline and outcome.",
		}, []string{"pipeline", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"pipeline"}),
		RowsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_normalized_total",
			Help:      "Rows handed to the warehouse after normalization.",
		}, []string{"pipeline"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows removed during normalization by reason.",
		}, []string{"pipeline", "reason"}),
		RejectedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_rejected_records_total",
			Help:      "Records rejected by the warehouse during load jobs.",
		}, []string{"pipeline"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Completion notifications by pipeline and outcome.",
		}, []string{"pipeline", "outcome"}),
	}
}
