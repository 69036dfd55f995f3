package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/patrickwarner/slotengine/internal/models"
)

var _ AnalyticsService = (*MockAnalytics)(nil)

// MockAnalytics keeps recorded events in memory for tests.
type MockAnalytics struct {
	mu     sync.Mutex
	events []EventRecord
	// Err, when set, is returned by RecordEvent.
	Err error
}

// NewMockAnalytics creates a new mock analytics instance
func NewMockAnalytics() *MockAnalytics {
	return &MockAnalytics{}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RecordEvent stores ev with the current time.
func (m *MockAnalytics) RecordEvent(ctx context.Context, ev models.EngagementEvent) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, EventRecord{
		Timestamp:   time.Now(),
		EventType:   string(ev.Type),
		ContentID:   ev.ContentID,
		CampaignID:  optional(ev.CampaignID),
		PlacementID: optional(ev.PlacementID),
		Device:      string(ev.Device),
		Locale:      optional(ev.Locale),
	})
	return nil
}

// GetEventsByContentID returns the stored events for contentID.
func (m *MockAnalytics) GetEventsByContentID(ctx context.Context, contentID string) ([]EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EventRecord
	for _, ev := range m.events {
		if ev.ContentID == contentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Name identifies the mock as a report sink.
func (m *MockAnalytics) Name() string { return "clickhouse" }

// Send records ev.
func (m *MockAnalytics) Send(ctx context.Context, ev models.EngagementEvent) error {
	return m.RecordEvent(ctx, ev)
}
