package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/analytics"
	"github.com/patrickwarner/slotengine/internal/db"
	"github.com/patrickwarner/slotengine/internal/fetch"
	"github.com/patrickwarner/slotengine/internal/models"
)

func newTestTools(t *testing.T) *SlotToolsServer {
	t.Helper()
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/content-blocks/srp-top" {
			_, _ = w.Write([]byte(`{"data":null}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": models.ContentDescriptor{
			ID:             "cb-1",
			CampaignID:     "camp-1",
			Kind:           models.DeliveryEmbeddedSnippet,
			Snippet:        "<div>dealer widget " + r.URL.Query().Get("make") + "</div>",
			DestinationURL: "https://dealer.example/",
			Width:          300,
			Height:         250,
		}})
	}))
	t.Cleanup(svc.Close)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	placements := models.NewInMemoryPlacementStore()
	placements.ReplaceAll([]models.Placement{{ID: "srp-top", Name: "Search results top", Width: 300, Height: 250}})

	return &SlotToolsServer{
		resolver:   fetch.NewFetcher(svc.URL, time.Second, zap.NewNop(), nil),
		placements: placements,
		counters:   db.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()})),
		events:     analytics.NewMockAnalytics(),
		logger:     zap.NewNop(),
		now:        func() time.Time { return time.Now() },
	}
}

func TestResolvePlacementPreview(t *testing.T) {
	s := newTestTools(t)

	_, out, err := s.ResolvePlacement(context.Background(), &mcp.CallToolRequest{}, ResolvePlacementInput{PlacementID: "srp-top", Make: "volvo"})
	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.Equal(t, "cb-1", out.ContentID)
	assert.Equal(t, "EMBEDDED_SNIPPET", out.DeliveryKind)
	assert.Equal(t, "snippet", out.Mode)
	assert.Equal(t, "<div>dealer widget volvo</div>", out.HTML)

	_, empty, err := s.ResolvePlacement(context.Background(), &mcp.CallToolRequest{}, ResolvePlacementInput{PlacementID: "other", Fallback: "fb"})
	require.NoError(t, err)
	assert.False(t, empty.Found)
	assert.Equal(t, "fallback", empty.Mode)

	_, _, err = s.ResolvePlacement(context.Background(), &mcp.CallToolRequest{}, ResolvePlacementInput{})
	assert.Error(t, err)

	s.resolver = nil
	_, _, err = s.ResolvePlacement(context.Background(), &mcp.CallToolRequest{}, ResolvePlacementInput{PlacementID: "srp-top"})
	assert.Error(t, err)
}

func TestEngagementCounts(t *testing.T) {
	s := newTestTools(t)
	ctx := context.Background()
	store := s.counters.(*db.RedisStore)
	require.NoError(t, store.Send(ctx, models.EngagementEvent{Type: models.EventExposure, ContentID: "cb-1"}))
	require.NoError(t, store.Send(ctx, models.EngagementEvent{Type: models.EventInteraction, ContentID: "cb-1"}))

	_, counts, err := s.EngagementCounts(ctx, &mcp.CallToolRequest{}, EngagementCountsInput{ContentID: "cb-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Exposures)
	assert.Equal(t, int64(1), counts.Interactions)

	_, _, err = s.EngagementCounts(ctx, &mcp.CallToolRequest{}, EngagementCountsInput{ContentID: "cb-1", Day: "yesterday"})
	assert.Error(t, err)

	s.counters = nil
	_, _, err = s.EngagementCounts(ctx, &mcp.CallToolRequest{}, EngagementCountsInput{ContentID: "cb-1"})
	assert.Error(t, err)
}

func TestContentEventsLimit(t *testing.T) {
	s := newTestTools(t)
	ctx := context.Background()
	m := s.events.(*analytics.MockAnalytics)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.RecordEvent(ctx, models.EngagementEvent{Type: models.EventInteraction, ContentID: "cb-1"}))
	}

	_, out, err := s.ContentEvents(ctx, &mcp.CallToolRequest{}, ContentEventsInput{ContentID: "cb-1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, out.Events, 2)

	s.events = nil
	_, _, err = s.ContentEvents(ctx, &mcp.CallToolRequest{}, ContentEventsInput{ContentID: "cb-1"})
	assert.ErrorIs(t, err, analytics.ErrUnavailable)
}

func TestListPlacements(t *testing.T) {
	s := newTestTools(t)
	_, out, err := s.ListPlacements(context.Background(), &mcp.CallToolRequest{}, ListPlacementsInput{})
	require.NoError(t, err)
	require.Len(t, out.Placements, 1)
	assert.Equal(t, 300, out.Placements[0].Width)
}

func TestRegisterTools(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "slotengine", Version: "test"}, nil)
	assert.NotPanics(t, func() { registerTools(server, newTestTools(t)) })
}
