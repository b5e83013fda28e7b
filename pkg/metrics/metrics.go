package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reasons a request line was not written
const (
	DropQueueFull = "queue_full"
	DropClosed    = "closed"
)

// Recorder holds the Prometheus collectors for intercepted requests
type Recorder struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	linesDropped    *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	gatherer        prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry so
// several recorders can coexist in one process.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	r := &Recorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchlog_requests_total",
				Help: "Total number of intercepted requests that produced a response",
			},
			[]string{"category", "status"},
		),

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchlog_request_duration_seconds",
				Help:    "Time from request start to response headers in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"category"},
		),

		responseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchlog_response_size_bytes",
				Help:    "Response body size in bytes",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
			[]string{"category"},
		),

		linesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchlog_lines_dropped_total",
				Help: "Total number of request lines dropped before being written",
			},
			[]string{"reason"},
		),

		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fetchlog_queue_depth",
				Help: "Number of request lines waiting to be written",
			},
		),
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		r.gatherer = g
	} else {
		r.gatherer = prometheus.DefaultGatherer
	}

	return r
}

// ObserveRequest records one intercepted response
func (r *Recorder) ObserveRequest(category string, status int, duration time.Duration) {
	r.requestsTotal.WithLabelValues(category, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(category).Observe(duration.Seconds())
}

// ObserveSize records the size of a response body
func (r *Recorder) ObserveSize(category string, bytes int64) {
	r.responseSize.WithLabelValues(category).Observe(float64(bytes))
}

// LineDropped records a line that never reached the output
func (r *Recorder) LineDropped(reason string) {
	r.linesDropped.WithLabelValues(reason).Inc()
}

// SetQueueDepth sets the number of queued lines
func (r *Recorder) SetQueueDepth(depth int) {
	r.queueDepth.Set(float64(depth))
}

// Handler serves the registry the recorder was created on
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
