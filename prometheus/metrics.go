package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Slot request counters by terminal outcome
	SlotRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_slot_requests_total",
			Help: "Total number of slot request operations",
		},
		[]string{"operation"}, // operation can be "submit", "approve", "decline"
	)

	// Template operation counter
	TemplateOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_template_operations_total",
			Help: "Total number of partnership template operations",
		},
		[]string{"operation"}, // operation can be "create", "update", "delete", "assign"
	)

	// Cascade account counter by result
	CascadeAccountCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_cascade_accounts_total",
			Help: "Total number of accounts touched by template cascades",
		},
		[]string{"result"}, // "ok" or "failed"
	)

	// Access check counter
	AccessCheckCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_access_checks_total",
			Help: "Total number of module access checks",
		},
		[]string{"module", "allowed"},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	QuotaErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_errors_total",
			Help: "Total number of quota operation errors",
		},
		[]string{"type"}, // type can be "validation", "not_found", "conflict", "storage"
	)

	// Event counter by sink outcome
	EventPublishedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_events_published_total",
			Help: "Total number of domain events handed to the notification sink",
		},
		[]string{"event"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quota_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quota_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)

	// Cascade duration by template
	CascadeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quota_cascade_duration_seconds",
			Help:    "Duration of template cascades in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "update", "delete"
	)
)

// Gauge metrics
var (
	// Pending slot requests
	PendingRequestsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quota_pending_slot_requests",
			Help: "Number of slot requests currently pending decision",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quota_info",
			Help: "Information about the quota service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(SlotRequestCounter)
	prometheus.MustRegister(TemplateOperationCounter)
	prometheus.MustRegister(CascadeAccountCounter)
	prometheus.MustRegister(AccessCheckCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(QuotaErrorCounter)
	prometheus.MustRegister(EventPublishedCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(CascadeDuration)

	// Register gauges
	prometheus.MustRegister(PendingRequestsGauge)
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// RecordQuotaError increments the error counter for the given type
func RecordQuotaError(errorType string) {
	QuotaErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordAccessCheck counts one module access verdict
func RecordAccessCheck(module string, allowed bool) {
	AccessCheckCounter.With(prometheus.Labels{
		"module":  module,
		"allowed": strconv.FormatBool(allowed),
	}).Inc()
}

// RecordCascade counts per-account cascade outcomes
func RecordCascade(ok, failed int) {
	if ok > 0 {
		CascadeAccountCounter.With(prometheus.Labels{"result": "ok"}).Add(float64(ok))
	}
	if failed > 0 {
		CascadeAccountCounter.With(prometheus.Labels{"result": "failed"}).Add(float64(failed))
	}
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// TrackCascade measures template cascade durations
func TrackCascade(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		CascadeDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			return err
		}
	}
}
