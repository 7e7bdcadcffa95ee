package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Source metrics
	SourcesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lookout_sources_total",
			Help: "Number of event sources by state",
		},
		[]string{"state"},
	)

	SourceIterationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_source_iterations_total",
			Help: "Source iterations by result (success, failure, unexpected)",
		},
		[]string{"result"},
	)

	SourceIterationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lookout_source_iteration_duration_seconds",
			Help:    "Time taken by one source iteration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SourceHaltsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_source_halts_total",
			Help: "Sources stopped by the failure policy, by reason",
		},
		[]string{"reason"},
	)

	// Distributor metrics
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_events_published_total",
			Help: "Events handed to the distributor by kind",
		},
		[]string{"kind"},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_deliveries_total",
			Help: "Delivery attempts by result (sent, failed, skipped)",
		},
		[]string{"result"},
	)

	DeliveryQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lookout_delivery_queue_depth",
			Help: "Number of queued delivery tasks",
		},
	)

	CachedEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lookout_cached_events",
			Help: "Number of events held in the cache",
		},
	)

	ConnectionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lookout_connections_open",
			Help: "Number of open subscriber connections",
		},
	)

	// Nightly jobs
	NightlyRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_nightly_runs_total",
			Help: "Nightly job executions by job",
		},
		[]string{"job"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lookout_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(SourcesTotal)
	prometheus.MustRegister(SourceIterationsTotal)
	prometheus.MustRegister(SourceIterationDuration)
	prometheus.MustRegister(SourceHaltsTotal)
	prometheus.MustRegister(EventsPublishedTotal)
	prometheus.MustRegister(DeliveriesTotal)
	prometheus.MustRegister(DeliveryQueueDepth)
	prometheus.MustRegister(CachedEvents)
	prometheus.MustRegister(ConnectionsOpen)
	prometheus.MustRegister(NightlyRunsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures the duration of an operation
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds on o
func (t *Timer) ObserveDuration(o prometheus.Observer) {
	o.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed seconds on the labelled histogram
func (t *Timer) ObserveDurationVec(vec *prometheus.HistogramVec, labels ...string) {
	vec.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
