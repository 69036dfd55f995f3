package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/patrickwarner/slotengine/internal/models"
)

func TestUnconfiguredAnalyticsIsUnavailable(t *testing.T) {
	var a *Analytics
	ev := models.EngagementEvent{Type: models.EventExposure, ContentID: "cb-1"}
	if err := a.RecordEvent(context.Background(), ev); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := (&Analytics{}).Send(context.Background(), ev); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Send, got %v", err)
	}
	if _, err := a.GetEventsByContentID(context.Background(), "cb-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on read, got %v", err)
	}
	a.Close()
}

func TestMockAnalyticsRecordsByContent(t *testing.T) {
	m := NewMockAnalytics()
	ctx := context.Background()
	_ = m.Send(ctx, models.EngagementEvent{Type: models.EventExposure, ContentID: "cb-1", PlacementID: "srp-top", Device: models.DeviceMobile, Locale: "de-DE"})
	_ = m.Send(ctx, models.EngagementEvent{Type: models.EventInteraction, ContentID: "cb-1", Device: models.DeviceMobile})
	_ = m.Send(ctx, models.EngagementEvent{Type: models.EventExposure, ContentID: "cb-2"})

	events, err := m.GetEventsByContentID(ctx, "cb-1")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("want 2 events, got %d", len(events))
	}
	if events[0].EventType != "EXPOSURE" || events[1].EventType != "INTERACTION" {
		t.Fatalf("unexpected order: %+v", events)
	}
	if events[0].PlacementID == nil || *events[0].PlacementID != "srp-top" {
		t.Fatalf("placement not recorded: %+v", events[0])
	}
	if events[1].Locale != nil {
		t.Fatalf("empty locale should be null, got %q", *events[1].Locale)
	}
}

func TestMockAnalyticsError(t *testing.T) {
	m := NewMockAnalytics()
	m.Err = errors.New("boom")
	if err := m.Send(context.Background(), models.EngagementEvent{ContentID: "x"}); err == nil {
		t.Fatal("expected error")
	}
}
