package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/climsense/climate-logger/internal/types"
)

// Key layout:
//   usage:{userId}:{yyyyMM}  counter of metered report units
//   alert:{id}               hash with alert detail
//   alerts:active            ZSET of alert keys scored by unix time
//   alerts:queue             stream of emitted alerts
//   reading:{sensorId}       JSON of the sensor's last accepted reading

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Client manages Redis connections and operations
type Client struct {
	client RedisClientInterface
}

// New creates a new Redis client
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewWithClient creates a new Redis client with a custom RedisClientInterface (useful for testing)
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// IncrementUsage adds metered units to a user's usage counter for a
// billing period. Callers treat this as best-effort.
func (c *Client) IncrementUsage(ctx context.Context, userID, periodKey string, units int64) error {
	key := fmt.Sprintf("usage:%s:%s", userID, periodKey)
	return c.client.IncrBy(ctx, key, units).Err()
}

// PushAlert stores alert detail, ranks it among active alerts and
// enqueues it on the alert stream.
func (c *Client) PushAlert(ctx context.Context, alert *types.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	key := fmt.Sprintf("alert:%s", alert.AlertID)
	at := alert.CreatedAt.UTC()

	if err := c.client.HSet(ctx, key,
		"type", alert.Type,
		"sensor_id", alert.SensorID,
		"ts", at.Unix(),
		"desc", alert.Description,
		"state", types.AlertStatusActive,
	).Err(); err != nil {
		return fmt.Errorf("failed to store alert detail: %w", err)
	}

	if err := c.client.ZAdd(ctx, "alerts:active", redis.Z{
		Score:  float64(at.Unix()),
		Member: key,
	}).Err(); err != nil {
		return fmt.Errorf("failed to rank alert: %w", err)
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: "alerts:queue",
		Values: map[string]interface{}{"id": alert.AlertID, "json": string(data)},
	}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue alert: %w", err)
	}

	return nil
}

// ResolveAlert marks an alert resolved and drops it from the active set
func (c *Client) ResolveAlert(ctx context.Context, alertID string) error {
	key := fmt.Sprintf("alert:%s", alertID)
	if err := c.client.HSet(ctx, key, "state", types.AlertStatusResolved).Err(); err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}
	return c.client.ZRem(ctx, "alerts:active", key).Err()
}

// StoreLastReading caches a sensor's most recent accepted reading
func (c *Client) StoreLastReading(ctx context.Context, m *types.Measurement) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	key := fmt.Sprintf("reading:%s", m.SensorID)
	return c.client.Set(ctx, key, data, 24*time.Hour).Err()
}

// GetLastReading retrieves a sensor's cached last reading, or nil when
// none is cached.
func (c *Client) GetLastReading(ctx context.Context, sensorID string) (*types.Measurement, error) {
	key := fmt.Sprintf("reading:%s", sensorID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached reading: %w", err)
	}

	var m types.Measurement
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached reading: %w", err)
	}
	return &m, nil
}
