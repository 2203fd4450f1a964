package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the motion relay service
type Metrics struct {
	// Ingestion metrics
	PacketsIngested  prometheus.Counter
	ValidationErrors prometheus.Counter
	StorageErrors    prometheus.Counter
	IngestDuration   prometheus.Histogram

	// Broadcast metrics
	Subscribers       prometheus.Gauge
	Broadcasts        prometheus.Counter
	DeliveryFailures  prometheus.Counter
	CatchupDeliveries prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics against the given
// registerer. Production code passes prometheus.DefaultRegisterer; tests
// pass a fresh prometheus.NewRegistry so repeated construction does not
// collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Ingestion metrics
		PacketsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "motion_packets_ingested_total",
			Help: "Total number of packets accepted and persisted",
		}),
		ValidationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "motion_validation_errors_total",
			Help: "Total number of packets rejected by validation",
		}),
		StorageErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "motion_storage_errors_total",
			Help: "Total number of persistence failures during ingestion",
		}),
		IngestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "motion_ingest_duration_seconds",
			Help:    "Duration of the validate-persist-broadcast sequence",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		}),

		// Broadcast metrics
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "motion_subscribers",
			Help: "Current number of connected push-channel observers",
		}),
		Broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "motion_broadcasts_total",
			Help: "Total number of packets broadcast to observers",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "motion_delivery_failures_total",
			Help: "Total number of per-subscriber send failures",
		}),
		CatchupDeliveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "motion_catchup_deliveries_total",
			Help: "Total number of latest-packet catch-up messages sent to new observers",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "motion_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "motion_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "motion_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordIngest increments the ingested counter and records duration
func (m *Metrics) RecordIngest(durationSeconds float64) {
	m.PacketsIngested.Inc()
	m.IngestDuration.Observe(durationSeconds)
}

// RecordValidationError increments the validation errors counter
func (m *Metrics) RecordValidationError() {
	m.ValidationErrors.Inc()
}

// RecordStorageError increments the storage errors counter
func (m *Metrics) RecordStorageError() {
	m.StorageErrors.Inc()
}

// SetSubscribers sets the current subscriber count
func (m *Metrics) SetSubscribers(count int) {
	m.Subscribers.Set(float64(count))
}

// RecordBroadcast increments the broadcasts counter
func (m *Metrics) RecordBroadcast() {
	m.Broadcasts.Inc()
}

// RecordDeliveryFailure increments the per-subscriber failure counter
func (m *Metrics) RecordDeliveryFailure() {
	m.DeliveryFailures.Inc()
}

// RecordHTTPRequest records an HTTP request with its duration
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
