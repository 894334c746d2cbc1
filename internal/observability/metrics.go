package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets     = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	deliveryDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	bodySizeBuckets         = []float64{100, 1024, 10240, 65536}
)

// Metrics holds all Prometheus metric instruments of the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Submission metrics
	SubmissionsTotal        *prometheus.CounterVec
	DeliveryDuration        *prometheus.HistogramVec
	ValidationFailuresTotal *prometheus.CounterVec
	InFlightRejectionsTotal *prometheus.CounterVec

	// Instance metrics
	ActiveInstances      prometheus.Gauge
	ReapedInstancesTotal prometheus.Counter

	// System metrics
	FormsLoaded prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formrelay_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formrelay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formrelay_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formrelay_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formrelay_submissions_total",
			Help: "Total number of submit attempts by outcome.",
		}, []string{"form_id", "outcome"}),
		DeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formrelay_delivery_duration_seconds",
			Help:    "Webhook delivery duration in seconds.",
			Buckets: deliveryDurationBuckets,
		}, []string{"form_id"}),
		ValidationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formrelay_validation_failures_total",
			Help: "Total number of field validation failures at submit time.",
		}, []string{"form_id", "field"}),
		InFlightRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formrelay_in_flight_rejections_total",
			Help: "Total number of submits refused because one was already running.",
		}, []string{"form_id"}),

		ActiveInstances: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "formrelay_active_instances",
			Help: "Number of open form instances.",
		}),
		ReapedInstancesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formrelay_reaped_instances_total",
			Help: "Total number of expired form instances closed by the reaper.",
		}),

		FormsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "formrelay_forms_loaded",
			Help: "Number of loaded form schemas.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		m.SubmissionsTotal,
		m.DeliveryDuration,
		m.ValidationFailuresTotal,
		m.InFlightRejectionsTotal,
		m.ActiveInstances,
		m.ReapedInstancesTotal,
		m.FormsLoaded,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordSubmission records one submit attempt. Submits stopped by validation
// never reach the endpoint, so they carry no delivery duration.
func (m *Metrics) RecordSubmission(formID, outcome string, duration time.Duration) {
	m.SubmissionsTotal.WithLabelValues(formID, outcome).Inc()
	if outcome != "validation_failed" {
		m.DeliveryDuration.WithLabelValues(formID).Observe(duration.Seconds())
	}
}

// RecordValidationFailure records one invalid field of a refused submit.
func (m *Metrics) RecordValidationFailure(formID, field string) {
	m.ValidationFailuresTotal.WithLabelValues(formID, field).Inc()
}

// RecordInFlightRejection records a submit refused while another was running.
func (m *Metrics) RecordInFlightRejection(formID string) {
	m.InFlightRejectionsTotal.WithLabelValues(formID).Inc()
}

// SetActiveInstances sets the number of open form instances.
func (m *Metrics) SetActiveInstances(n int) {
	m.ActiveInstances.Set(float64(n))
}

// RecordReaped records instances closed by the expiry sweep.
func (m *Metrics) RecordReaped(n int) {
	m.ReapedInstancesTotal.Add(float64(n))
}

// SetFormsLoaded sets the number of loaded form schemas.
func (m *Metrics) SetFormsLoaded(n int) {
	m.FormsLoaded.Set(float64(n))
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint. A
// nil gatherer serves the default registry.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// statusRecorder captures the status and body size of a response for the
// metrics and tracing middleware.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
