// Package metrics holds the Prometheus metrics of the metadata service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec   // groupfolder_metadata_http_requests_total{method,route,status}
	RequestDuration *prometheus.HistogramVec // groupfolder_metadata_http_request_duration_seconds{method,route}

	MetadataWrites     *prometheus.CounterVec // groupfolder_metadata_value_writes_total{target}
	ValidationFailures *prometheus.CounterVec // groupfolder_metadata_validation_failures_total{target}

	JobRuns     *prometheus.CounterVec   // groupfolder_metadata_job_runs_total{job,result}
	JobDuration *prometheus.HistogramVec // groupfolder_metadata_job_duration_seconds{job}
}

// New registers all metrics with registry
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groupfolder_metadata_http_requests_total",
			Help: "HTTP requests handled, by route template and status code",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "groupfolder_metadata_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		MetadataWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groupfolder_metadata_value_writes_total",
			Help: "Successful metadata saves, by target (file, groupfolder_file, groupfolder)",
		}, []string{"target"}),

		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groupfolder_metadata_validation_failures_total",
			Help: "Metadata saves rejected by validation, by target",
		}, []string{"target"}),

		JobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groupfolder_metadata_job_runs_total",
			Help: "Background job runs, by job and result",
		}, []string{"job", "result"}),

		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "groupfolder_metadata_job_duration_seconds",
			Help:    "Background job duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
	}
}

// ObserveRequest records one handled HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordWrite records a metadata save outcome for target
func (m *Metrics) RecordWrite(target string, err error, validation bool) {
	if m == nil {
		return
	}
	if err == nil {
		m.MetadataWrites.WithLabelValues(target).Inc()
		return
	}
	if validation {
		m.ValidationFailures.WithLabelValues(target).Inc()
	}
}

// ObserveJob records one background job run
func (m *Metrics) ObserveJob(job string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.JobRuns.WithLabelValues(job, result).Inc()
	m.JobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
