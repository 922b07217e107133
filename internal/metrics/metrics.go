// Package metrics exposes the coordinator's Prometheus instrumentation,
// grounded on the teacher repo's internal/app/metrics package: request
// counters and latency histograms plus an in-flight gauge, wrapped as an
// HTTP middleware.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registered Prometheus collectors.
type Metrics struct {
	requestsInFlight prometheus.Gauge
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// New registers and returns the coordinator's metric collectors against the
// default registry.
func New() *Metrics {
	return &Metrics{
		requestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "recoverd_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		}),
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "recoverd_http_requests_total",
			Help: "Total HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recoverd_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument wraps a handler registered at routeName with in-flight,
// counter, and latency instrumentation.
func (m *Metrics) Instrument(routeName string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)

		m.requestDuration.WithLabelValues(routeName).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(routeName, strconv.Itoa(rec.status)).Inc()
	}
}

// Handler returns the /metrics exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
