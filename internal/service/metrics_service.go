package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the ingestion pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	ingestRows      prometheus.Counter
	ingestSkipped   prometheus.Counter
	uploadsTotal    *prometheus.CounterVec
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

	ingestRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_rows_processed_total",
		Help: "Grade rows written by ingestion runs",
	})

	ingestSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_rows_skipped_total",
		Help: "Rows skipped by ingestion runs, all reasons",
	})

	uploadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_uploads_total",
		Help: "Completed ingestion runs by terminal status",
	}, []string{"status"})

	registry.MustRegister(requestDuration, requestTotal, ingestRows, ingestSkipped, uploadsTotal)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		ingestRows:      ingestRows,
		ingestSkipped:   ingestSkipped,
		uploadsTotal:    uploadsTotal,
	}
}

// Handler exposes the scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveIngestRows records the outcome counts of one ingestion run.
func (s *MetricsService) ObserveIngestRows(processed, skipped int) {
	s.ingestRows.Add(float64(processed))
	s.ingestSkipped.Add(float64(skipped))
}

// ObserveUpload records a terminal upload status.
func (s *MetricsService) ObserveUpload(status string) {
	s.uploadsTotal.WithLabelValues(status).Inc()
}
