package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/models"
)

// counterTTL keeps daily engagement counters for a day after their first hit.
const counterTTL = 24 * time.Hour

// RedisStore wraps a redis client holding daily engagement counters per content id.
type RedisStore struct {
	Client *redis.Client
	now    func() time.Time
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}))

	// Add OpenTelemetry instrumentation to Redis client
	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client, now: time.Now}
}

func engagementKey(eventType models.EventType, contentID string, day time.Time) string {
	return fmt.Sprintf("engage:%s:content:%s:%s", eventType, contentID, day.Format("2006-01-02"))
}

// IncrementEngagement increments the daily counter for eventType on a content
// unit. A 24h TTL is applied on first set.
func (r *RedisStore) IncrementEngagement(ctx context.Context, eventType models.EventType, contentID string) (int64, error) {
	key := engagementKey(eventType, contentID, r.now())
	val, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		r.Client.Expire(ctx, key, counterTTL)
	}
	return val, nil
}

// EngagementCounts holds one day of counters for a content unit.
type EngagementCounts struct {
	ContentID    string `json:"content_id"`
	Day          string `json:"day"`
	Exposures    int64  `json:"exposures"`
	Interactions int64  `json:"interactions"`
}

// GetEngagementCounts returns the counters for contentID on day. Missing keys count as zero.
func (r *RedisStore) GetEngagementCounts(ctx context.Context, contentID string, day time.Time) (EngagementCounts, error) {
	out := EngagementCounts{ContentID: contentID, Day: day.Format("2006-01-02")}
	vals, err := r.Client.MGet(ctx,
		engagementKey(models.EventExposure, contentID, day),
		engagementKey(models.EventInteraction, contentID, day),
	).Result()
	if err != nil {
		return out, fmt.Errorf("get engagement counts: %w", err)
	}
	out.Exposures = parseCount(vals[0])
	out.Interactions = parseCount(vals[1])
	return out, nil
}

func parseCount(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int64
	if _, err := fmt.Sscan(s, &n); err != nil {
		return 0
	}
	return n
}

// Name identifies the store as a report sink.
func (r *RedisStore) Name() string { return "redis" }

// Send counts ev. It satisfies report.Sink.
func (r *RedisStore) Send(ctx context.Context, ev models.EngagementEvent) error {
	if _, err := r.IncrementEngagement(ctx, ev.Type, ev.ContentID); err != nil {
		return fmt.Errorf("increment %s for %s: %w", ev.Type, ev.ContentID, err)
	}
	return nil
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
