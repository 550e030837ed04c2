// Package monitoring exposes Prometheus metrics for the tracing pipeline.
//
// Metrics register against an injected Registerer so that multiple tracer
// instances (and tests) can coexist in one process without duplicate
// registration panics.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons recorded on the spans_dropped_total counter.
const (
	DropQueueFull     = "queue_full"
	DropExportFailed  = "export_failed"
	DropUnsampled     = "unsampled"
	DropShutdown      = "shutdown"
	DropSealedMutated = "sealed_mutation"
)

// Metrics holds all Prometheus collectors for the instrumentation layer.
type Metrics struct {
	// Span pipeline
	SpansStarted  prometheus.Counter
	SpansExported prometheus.Counter
	SpansDropped  *prometheus.CounterVec

	// Exporter
	ExportFailures prometheus.Counter
	ExportDuration prometheus.Histogram
	BatchSpans     prometheus.Histogram
	QueueDepth     prometheus.Gauge

	// Host HTTP surface
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a metrics collector registered against reg. Passing nil
// uses the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SpansStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracelay_spans_started_total",
			Help: "Total number of spans started",
		}),
		SpansExported: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracelay_spans_exported_total",
			Help: "Total number of spans successfully exported",
		}),
		SpansDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracelay_spans_dropped_total",
				Help: "Total number of spans dropped, by reason",
			},
			[]string{"reason"},
		),
		ExportFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracelay_export_failures_total",
			Help: "Total number of failed export attempts after retries",
		}),
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracelay_export_duration_seconds",
			Help:    "Duration of export batch transmissions",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		BatchSpans: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracelay_batch_spans",
			Help:    "Number of spans per export batch",
			Buckets: []float64{1, 8, 32, 128, 512, 2048},
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracelay_queue_depth",
			Help: "Current number of spans buffered for export",
		}),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracelay_http_requests_total",
				Help: "Total number of HTTP requests observed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracelay_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
	}
}

// RecordHTTPRequest records an observed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDrop increments the dropped-span counter for the given reason.
func (m *Metrics) RecordDrop(reason string, count int) {
	m.SpansDropped.WithLabelValues(reason).Add(float64(count))
}

// RecordExport records a successful batch transmission.
func (m *Metrics) RecordExport(spans int, duration time.Duration) {
	m.SpansExported.Add(float64(spans))
	m.BatchSpans.Observe(float64(spans))
	m.ExportDuration.Observe(duration.Seconds())
}
