package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/slotengine/internal/models"
)

// AnalyticsService defines the interface for the engagement audit log.
// Implementations should handle cases where underlying storage is unavailable
// by returning ErrUnavailable.
type AnalyticsService interface {
	// RecordEvent appends one engagement event to the audit log.
	RecordEvent(ctx context.Context, ev models.EngagementEvent) error
	// GetEventsByContentID returns the recorded events for a content unit, oldest first.
	GetEventsByContentID(ctx context.Context, contentID string) ([]EventRecord, error)
}

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB *sql.DB
}

// EventRecord mirrors a row in the slot_events table.
type EventRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
	ContentID   string    `json:"content_id"`
	CampaignID  *string   `json:"campaign_id"`
	PlacementID *string   `json:"placement_id"`
	Device      string    `json:"device"`
	Locale      *string   `json:"locale"`
}

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = fmt.Errorf("analytics unavailable")

// createTableSQL lets ClickHouse assign the timestamp on insert.
const createTableSQL = `CREATE TABLE IF NOT EXISTS slot_events (
       timestamp    DateTime DEFAULT now(),
       event_type   LowCardinality(String),
       content_id   String,
       campaign_id  Nullable(String),
       placement_id Nullable(String),
       device       LowCardinality(String),
       locale       Nullable(String)
   ) ENGINE=MergeTree() ORDER BY (content_id, timestamp)`

// InitClickHouse connects to ClickHouse and ensures the slot_events table exists.
func InitClickHouse(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Analytics, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), createTableSQL); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse", zap.Int("max_open_conns", maxOpenConns))
	return &Analytics{DB: db}, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// RecordEvent inserts a single event row into the slot_events table.
func (a *Analytics) RecordEvent(ctx context.Context, ev models.EngagementEvent) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	stmt := `INSERT INTO slot_events (event_type, content_id, campaign_id, placement_id, device, locale) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := a.DB.ExecContext(ctx, stmt, string(ev.Type), ev.ContentID, nullable(ev.CampaignID), nullable(ev.PlacementID), string(ev.Device), nullable(ev.Locale)); err != nil {
		return fmt.Errorf("insert %s event: %w", ev.Type, err)
	}
	return nil
}

// Name identifies the audit log as a report sink.
func (a *Analytics) Name() string { return "clickhouse" }

// Send records ev. It satisfies report.Sink.
func (a *Analytics) Send(ctx context.Context, ev models.EngagementEvent) error {
	return a.RecordEvent(ctx, ev)
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}

// GetEventsByContentID returns all events for a content id ordered by timestamp.
func (a *Analytics) GetEventsByContentID(ctx context.Context, contentID string) ([]EventRecord, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT timestamp, event_type, content_id, campaign_id, placement_id, device, locale FROM slot_events WHERE content_id=? ORDER BY timestamp`
	rows, err := a.DB.QueryContext(ctx, query, contentID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var events []EventRecord
	for rows.Next() {
		var ev EventRecord
		if err := rows.Scan(&ev.Timestamp, &ev.EventType, &ev.ContentID, &ev.CampaignID, &ev.PlacementID, &ev.Device, &ev.Locale); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}
