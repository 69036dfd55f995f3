package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// so components do not reach for the global Prometheus collectors directly.
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Content resolution metrics
	IncrementContentFetch(outcome string)
	RecordContentFetchLatency(duration time.Duration)

	// Engagement metrics
	IncrementEngagement(eventType string)
	IncrementReportFailures(sink string)

	// Slot lifecycle metrics
	IncrementMounts(uaDevice string)
	SlotMounted()
	SlotUnmounted()
	IncrementStateTransition(state string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus collectors.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementContentFetch(outcome string) {
	ContentFetchCount.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) RecordContentFetchLatency(duration time.Duration) {
	ContentFetchLatency.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementEngagement(eventType string) {
	EngagementCount.WithLabelValues(eventType).Inc()
}

func (r *PrometheusRegistry) IncrementReportFailures(sink string) {
	ReportFailures.WithLabelValues(sink).Inc()
}

func (r *PrometheusRegistry) IncrementMounts(uaDevice string) {
	MountCount.WithLabelValues(uaDevice).Inc()
}

func (r *PrometheusRegistry) SlotMounted() {
	ActiveSlots.Inc()
}

func (r *PrometheusRegistry) SlotUnmounted() {
	ActiveSlots.Dec()
}

func (r *PrometheusRegistry) IncrementStateTransition(state string) {
	StateTransitions.WithLabelValues(state).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementContentFetch(outcome string)                                 {}
func (r *NoOpRegistry) RecordContentFetchLatency(duration time.Duration)                     {}
func (r *NoOpRegistry) IncrementEngagement(eventType string)                                 {}
func (r *NoOpRegistry) IncrementReportFailures(sink string)                                  {}
func (r *NoOpRegistry) IncrementMounts(uaDevice string)                                      {}
func (r *NoOpRegistry) SlotMounted()                                                         {}
func (r *NoOpRegistry) SlotUnmounted()                                                       {}
func (r *NoOpRegistry) IncrementStateTransition(state string)                                {}
