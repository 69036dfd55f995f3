package observability

import (
	"sync"
	"time"
)

var _ MetricsRegistry = (*MockMetricsRegistry)(nil)

// MockMetricsRegistry records counter increments in memory so tests can
// assert on them. Latencies are ignored.
type MockMetricsRegistry struct {
	mu     sync.Mutex
	counts map[string]int
	active int
}

// NewMockMetricsRegistry returns an empty MockMetricsRegistry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{counts: make(map[string]int)}
}

func (m *MockMetricsRegistry) inc(key string) {
	m.mu.Lock()
	m.counts[key]++
	m.mu.Unlock()
}

// Count returns how many times the named counter was incremented, e.g.
// "fetch:no_content", "engagement:EXPOSURE", "report_failure:http".
func (m *MockMetricsRegistry) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

// Active returns the current active slot gauge value.
func (m *MockMetricsRegistry) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("request:" + endpoint + ":" + status)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementContentFetch(outcome string)                                 { m.inc("fetch:" + outcome) }
func (m *MockMetricsRegistry) RecordContentFetchLatency(duration time.Duration)                     {}
func (m *MockMetricsRegistry) IncrementEngagement(eventType string)                                 { m.inc("engagement:" + eventType) }
func (m *MockMetricsRegistry) IncrementReportFailures(sink string)                                  { m.inc("report_failure:" + sink) }
func (m *MockMetricsRegistry) IncrementMounts(uaDevice string)                                      { m.inc("mount:" + uaDevice) }
func (m *MockMetricsRegistry) IncrementStateTransition(state string)                                { m.inc("state:" + state) }

func (m *MockMetricsRegistry) SlotMounted() {
	m.mu.Lock()
	m.active++
	m.mu.Unlock()
}

func (m *MockMetricsRegistry) SlotUnmounted() {
	m.mu.Lock()
	m.active--
	m.mu.Unlock()
}
