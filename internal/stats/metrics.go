package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics raccoglie tutte le metriche Prometheus della pipeline
type Metrics struct {
	AnalysesTotal    *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	FetchRetries     prometheus.Counter
	Degradations     *prometheus.CounterVec
	Deliveries       *prometheus.CounterVec
	EnqueueErrors    prometheus.Counter
	QueueDepth       prometheus.Gauge
	VendorRequests   *prometheus.CounterVec
	VendorDuration   *prometheus.HistogramVec
	LLMTokens        *prometheus.CounterVec
	TasksInFlight    prometheus.Gauge
}

// NewMetrics registra le metriche sotto il namespace dato nel registry
// di default del processo
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWith registra le metriche su un Registerer esplicito
// (i test usano un registry isolato per invocazione)
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "riftcoach"
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.AnalysesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of analyses by mode and final status",
		},
		[]string{"mode", "status"},
	)

	m.StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_milliseconds",
			Help:      "Pipeline stage duration in milliseconds",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"stage"},
	)

	m.FetchRetries = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Total number of fetch stage retries",
		},
	)

	m.Degradations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degradations_total",
			Help:      "Total number of degraded analyses by kind",
		},
		[]string{"kind"},
	)

	m.Deliveries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	m.EnqueueErrors = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueue_errors_total",
			Help:      "Total number of failed enqueue attempts",
		},
	)

	m.QueueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current depth of the analysis queue",
		},
	)

	m.VendorRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_requests_total",
			Help:      "Total number of game vendor API calls by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	m.VendorDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vendor_request_duration_milliseconds",
			Help:      "Game vendor API call duration in milliseconds",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"endpoint"},
	)

	m.LLMTokens = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Total number of LLM tokens by type (prompt, completion)",
		},
		[]string{"type"},
	)

	m.TasksInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Number of analysis tasks currently executing",
		},
	)

	return m
}
