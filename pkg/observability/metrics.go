// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the scrubgate gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, path, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubgate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method and path.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrubgate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "path"},
	)

	// InterceptionsTotal counts prompt and file interceptions by outcome.
	InterceptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubgate_interceptions_total",
			Help: "Interceptions by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// DetectorLatency records detection call latency in seconds by outcome.
	DetectorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrubgate_detector_latency_seconds",
			Help:    "Detector latency",
			Buckets: LLMBuckets,
		},
		[]string{"outcome"},
	)

	// ItemsScrubbed counts placeholder substitutions by item type.
	ItemsScrubbed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubgate_items_scrubbed_total",
			Help: "Scrubbed items",
		},
		[]string{"item_type"},
	)

	// ToolRestartsTotal counts scrub tool child respawns by cause.
	ToolRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubgate_tool_restarts_total",
			Help: "Tool child restarts",
		},
		[]string{"cause"},
	)

	// ObserverConnections tracks currently connected observer sockets.
	ObserverConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrubgate_observer_connections_active",
			Help: "Active observer connections",
		},
	)

	// ObserverEventsDropped counts events dropped on full subscriber buffers.
	ObserverEventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubgate_observer_events_dropped_total",
			Help: "Observer events dropped on backpressure",
		},
		[]string{"channel"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InterceptionsTotal,
		DetectorLatency,
		ItemsScrubbed,
		ToolRestartsTotal,
		ObserverConnections,
		ObserverEventsDropped,
	)
}
