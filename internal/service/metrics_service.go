package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the API surface
// and the enrollment engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	attemptTotal    *prometheus.CounterVec
	runTotal        prometheus.Counter
	runDuration     prometheus.Histogram
	retryTotal      prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	attemptTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_attempts_total",
		Help: "Total enrollment attempts by action, status and reason",
	}, []string{"action", "status", "reason"})

	runTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_runs_total",
		Help: "Total per-account enrollment runs",
	})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrollment_run_duration_seconds",
		Help:    "Duration of per-account enrollment runs",
		Buckets: prometheus.DefBuckets,
	})

	retryTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_retries_total",
		Help: "Total retried enrollment attempts",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, attemptTotal, runTotal, runDuration, retryTotal, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		attemptTotal:    attemptTotal,
		runTotal:        runTotal,
		runDuration:     runDuration,
		retryTotal:      retryTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveAttempt records one logged attempt outcome.
func (m *MetricsService) ObserveAttempt(outcome models.AttemptOutcome) {
	if m == nil {
		return
	}
	m.attemptTotal.WithLabelValues(string(outcome.Action), string(outcome.Status), string(outcome.Reason)).Inc()
	if outcome.AttemptNumber > 1 {
		m.retryTotal.Add(float64(outcome.AttemptNumber - 1))
	}
}

// ObserveRun records one per-account run summary.
func (m *MetricsService) ObserveRun(summary models.RunSummary) {
	if m == nil {
		return
	}
	m.runTotal.Inc()
	m.runDuration.Observe(summary.Duration.Seconds())
}
