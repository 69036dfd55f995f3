package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotengine_requests_total",
			Help: "Total HTTP requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotengine_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// content resolutions labelled by outcome (ok, no_content, transport_error, bad_status, decode_error, malformed)
	ContentFetchCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotengine_content_fetch_total",
			Help: "Total content block resolutions",
		},
		[]string{"outcome"},
	)

	ContentFetchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slotengine_content_fetch_duration_seconds",
			Help:    "Duration of content block requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	// engagement events handed to the reporter, by event type
	EngagementCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotengine_engagement_events_total",
			Help: "Total engagement events reported",
		},
		[]string{"type"},
	)

	// swallowed report failures per sink
	ReportFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotengine_report_failures_total",
			Help: "Total engagement reports that failed to deliver",
		},
		[]string{"sink"},
	)

	// slot mounts by user-agent device family
	MountCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotengine_mounts_total",
			Help: "Total slot mounts",
		},
		[]string{"ua_device"},
	)

	ActiveSlots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotengine_active_slots",
			Help: "Slot instances currently mounted",
		},
	)

	// controller state transitions, by target state
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotengine_state_transitions_total",
			Help: "Total slot state transitions",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		ContentFetchCount,
		ContentFetchLatency,
		EngagementCount,
		ReportFailures,
		MountCount,
		ActiveSlots,
		StateTransitions,
	)
}
