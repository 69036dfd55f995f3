package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/analytics"
	"github.com/patrickwarner/slotengine/internal/config"
	"github.com/patrickwarner/slotengine/internal/db"
	"github.com/patrickwarner/slotengine/internal/fetch"
	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
	"github.com/patrickwarner/slotengine/internal/render"
)

const dayLayout = "2006-01-02"

// Resolver previews what a placement would show.
type Resolver interface {
	Resolve(ctx context.Context, placementID string, targeting *models.TargetingContext) *models.ContentDescriptor
}

// CounterStore reads the daily engagement counters.
type CounterStore interface {
	GetEngagementCounts(ctx context.Context, contentID string, day time.Time) (db.EngagementCounts, error)
}

type ListPlacementsInput struct{}

type ListPlacementsOutput struct {
	Placements []models.Placement `json:"placements"`
}

type ResolvePlacementInput struct {
	PlacementID string `json:"placement_id"`
	FuelType    string `json:"fuel_type,omitempty"`
	BodyType    string `json:"body_type,omitempty"`
	Make        string `json:"make,omitempty"`
	Location    string `json:"location,omitempty"`
	Fallback    string `json:"fallback,omitempty"`
}

type ResolvePlacementOutput struct {
	Found        bool   `json:"found"`
	ContentID    string `json:"content_id,omitempty"`
	CampaignID   string `json:"campaign_id,omitempty"`
	DeliveryKind string `json:"delivery_kind,omitempty"`
	Destination  string `json:"destination,omitempty"`
	Mode         string `json:"mode"`
	HTML         string `json:"html,omitempty"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

type EngagementCountsInput struct {
	ContentID string `json:"content_id"`
	Day       string `json:"day,omitempty"`
}

type ContentEventsInput struct {
	ContentID string `json:"content_id"`
	Limit     int    `json:"limit,omitempty"`
}

// EventView is an audit event flattened for tool output.
type EventView struct {
	Timestamp   string `json:"timestamp"`
	EventType   string `json:"event_type"`
	ContentID   string `json:"content_id"`
	CampaignID  string `json:"campaign_id,omitempty"`
	PlacementID string `json:"placement_id,omitempty"`
	Device      string `json:"device"`
	Locale      string `json:"locale,omitempty"`
}

type ContentEventsOutput struct {
	Events []EventView `json:"events"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func eventView(e analytics.EventRecord) EventView {
	return EventView{
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339),
		EventType:   e.EventType,
		ContentID:   e.ContentID,
		CampaignID:  deref(e.CampaignID),
		PlacementID: deref(e.PlacementID),
		Device:      e.Device,
		Locale:      deref(e.Locale),
	}
}

// SlotToolsServer holds the dependencies of the MCP tools. Any of them may be nil.
type SlotToolsServer struct {
	resolver   Resolver
	placements models.PlacementStore
	counters   CounterStore
	events     analytics.AnalyticsService
	logger     *zap.Logger
	now        func() time.Time
}

// ListPlacements returns the placement registry.
func (s *SlotToolsServer) ListPlacements(ctx context.Context, req *mcp.CallToolRequest, input ListPlacementsInput) (*mcp.CallToolResult, ListPlacementsOutput, error) {
	if s.placements == nil {
		return nil, ListPlacementsOutput{}, fmt.Errorf("placement registry unavailable")
	}
	pls := s.placements.All()
	if pls == nil {
		pls = []models.Placement{}
	}
	return nil, ListPlacementsOutput{Placements: pls}, nil
}

// ResolvePlacement previews the content a slot would render for the given targeting.
func (s *SlotToolsServer) ResolvePlacement(ctx context.Context, req *mcp.CallToolRequest, input ResolvePlacementInput) (*mcp.CallToolResult, ResolvePlacementOutput, error) {
	if s.resolver == nil {
		return nil, ResolvePlacementOutput{}, fmt.Errorf("placement service unavailable")
	}
	if input.PlacementID == "" {
		return nil, ResolvePlacementOutput{}, fmt.Errorf("placement_id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tc := &models.TargetingContext{
		FuelType: input.FuelType,
		BodyType: input.BodyType,
		Make:     input.Make,
		Location: input.Location,
	}
	if tc.IsZero() {
		tc = nil
	}
	d := s.resolver.Resolve(ctx, input.PlacementID, tc)
	p := render.Choose(d, render.Options{Fallback: input.Fallback})

	out := ResolvePlacementOutput{Mode: string(p.Mode), HTML: p.HTML, Width: p.Width, Height: p.Height}
	if d != nil {
		out.Found = true
		out.ContentID = d.ID
		out.CampaignID = d.CampaignID
		out.DeliveryKind = string(d.Kind)
		out.Destination = d.DestinationURL
	}
	s.logger.Info("resolve_placement",
		zap.String("placement_id", input.PlacementID),
		zap.Bool("found", out.Found))
	return nil, out, nil
}

// EngagementCounts returns one day of exposure and interaction counters.
func (s *SlotToolsServer) EngagementCounts(ctx context.Context, req *mcp.CallToolRequest, input EngagementCountsInput) (*mcp.CallToolResult, db.EngagementCounts, error) {
	if s.counters == nil {
		return nil, db.EngagementCounts{}, fmt.Errorf("engagement counters unavailable: REDIS_ADDR not configured")
	}
	if input.ContentID == "" {
		return nil, db.EngagementCounts{}, fmt.Errorf("content_id is required")
	}
	day := s.now()
	if input.Day != "" {
		parsed, err := time.Parse(dayLayout, input.Day)
		if err != nil {
			return nil, db.EngagementCounts{}, fmt.Errorf("day must be YYYY-MM-DD: %w", err)
		}
		day = parsed
	}
	counts, err := s.counters.GetEngagementCounts(ctx, input.ContentID, day)
	if err != nil {
		return nil, db.EngagementCounts{}, err
	}
	return nil, counts, nil
}

// ContentEvents returns the most recent audit events for a content unit.
func (s *SlotToolsServer) ContentEvents(ctx context.Context, req *mcp.CallToolRequest, input ContentEventsInput) (*mcp.CallToolResult, ContentEventsOutput, error) {
	if s.events == nil {
		return nil, ContentEventsOutput{}, analytics.ErrUnavailable
	}
	events, err := s.events.GetEventsByContentID(ctx, input.ContentID)
	if err != nil {
		return nil, ContentEventsOutput{}, err
	}
	if input.Limit > 0 && len(events) > input.Limit {
		events = events[len(events)-input.Limit:]
	}
	out := ContentEventsOutput{Events: make([]EventView, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, eventView(e))
	}
	return nil, out, nil
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func registerTools(server *mcp.Server, s *SlotToolsServer) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_placements",
		Description: "List the registered placements with their reserved slot sizes",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}, s.ListPlacements)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_placement",
		Description: "Preview the content a slot would render for a placement and targeting context",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"placement_id": stringProp("Placement to resolve"),
				"fuel_type":    stringProp("Fuel type targeting (optional)"),
				"body_type":    stringProp("Body type targeting (optional)"),
				"make":         stringProp("Brand targeting (optional)"),
				"location":     stringProp("Location targeting, e.g. DE or DE-BY (optional)"),
				"fallback":     stringProp("Fallback markup rendered when there is no content (optional)"),
			},
			"required": []string{"placement_id"},
		},
	}, s.ResolvePlacement)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "engagement_counts",
		Description: "Daily exposure and interaction counters for a content unit",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"content_id": stringProp("Content unit id"),
				"day": map[string]interface{}{
					"type":        "string",
					"format":      "date",
					"description": "Day as YYYY-MM-DD (optional, defaults to today)",
				},
			},
			"required": []string{"content_id"},
		},
	}, s.EngagementCounts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "content_events",
		Description: "Audit log of engagement events recorded for a content unit",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"content_id": stringProp("Content unit id"),
				"limit": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"description": "Return only the most recent N events (optional)",
				},
			},
			"required": []string{"content_id"},
		},
	}, s.ContentEvents)
}

func main() {
	// stdout carries the MCP protocol, so logs go to stderr
	logger, err := observability.InitStderrLogger("slotengine-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	cfg := config.Load()

	tools := &SlotToolsServer{
		resolver: fetch.NewFetcher(cfg.PlacementServiceURL, cfg.FetchTimeout, logger, nil),
		logger:   logger,
		now:      time.Now,
	}

	placements := models.NewInMemoryPlacementStore()
	if pg, err := db.InitPostgres(cfg.PostgresDSN, 2, 1, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime); err != nil {
		logger.Warn("Postgres unavailable, placement registry empty", zap.Error(err))
	} else {
		defer pg.Close()
		if n, err := db.ReloadPlacements(context.Background(), pg, placements); err != nil {
			logger.Warn("Failed to load placements", zap.Error(err))
		} else {
			logger.Info("Loaded placements", zap.Int("count", n))
		}
	}
	tools.placements = placements

	if cfg.RedisAddr != "" {
		store, err := db.InitRedis(cfg.RedisAddr)
		if err != nil {
			logger.Warn("Redis unavailable, engagement_counts disabled", zap.Error(err))
		} else {
			defer store.Close()
			tools.counters = store
		}
	}

	if cfg.ClickHouseDSN != "" {
		ch, err := analytics.InitClickHouse(cfg.ClickHouseDSN, 5, 1, cfg.CHConnMaxLifetime, cfg.CHConnMaxIdleTime)
		if err != nil {
			logger.Warn("ClickHouse unavailable, content_events disabled", zap.Error(err))
		} else {
			defer ch.Close()
			tools.events = ch
		}
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "slotengine",
		Version: "1.0.0",
	}, nil)
	registerTools(server, tools)

	var logBuffer bytes.Buffer
	transport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP server running via stdio")
	if err := server.Run(context.Background(), transport); err != nil {
		logger.Error("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
		os.Exit(1)
	}
}
