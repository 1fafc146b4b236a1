package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes request and insight counters for Prometheus
type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	reportsTotal      prometheus.Counter
	reportFindings    *prometheus.CounterVec
	comparisonsTotal  prometheus.Counter
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		reportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insight_reports_total",
			Help: "Total insight reports generated.",
		}),
		reportFindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insight_findings_total",
			Help: "Findings emitted in insight reports by section.",
		}, []string{"section"}),
		comparisonsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batch_comparisons_total",
			Help: "Total batch comparisons computed.",
		}),
	}

	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		m.httpRequestsTotal,
		m.httpDuration,
		m.reportsTotal,
		m.reportFindings,
		m.comparisonsTotal,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler records count and latency of requests served by next under route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ReportGenerated counts a report and the size of each of its sections
func (m *Metrics) ReportGenerated(warnings, anomalies, suggestions, trends int) {
	if m == nil {
		return
	}
	m.reportsTotal.Inc()
	m.reportFindings.WithLabelValues("warnings").Add(float64(warnings))
	m.reportFindings.WithLabelValues("anomalies").Add(float64(anomalies))
	m.reportFindings.WithLabelValues("suggestions").Add(float64(suggestions))
	m.reportFindings.WithLabelValues("trends").Add(float64(trends))
}

func (m *Metrics) ComparisonComputed() {
	if m == nil {
		return
	}
	m.comparisonsTotal.Inc()
}
