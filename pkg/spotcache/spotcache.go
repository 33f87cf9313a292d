// Package spotcache wraps a Redis client with string Get/Set helpers and a
// pub/sub channel the Decision Engine's Matrix hot-reload subscribes to
// (spec §4.D hot-swap, §8 scenario 6 "active snapshot replaced"). The
// application uses only the pub/sub; the quote caches use pkg/cache alone.
package spotcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SnapshotReplacedChannel is the pub/sub channel name a Matrix Store
// publishes to after Save marks a new snapshot active.
const SnapshotReplacedChannel = "btc15m:matrix:snapshot-replaced"

// Cache is a thin Redis wrapper with Get/Set over string payloads (strings,
// not interface{}, since Redis only stores bytes) and the snapshot-replaced
// pub/sub. It does not implement pkg/cache.Cache and is not layered behind
// the Ristretto cache.
type Cache struct {
	client *redis.Client
	logger *zap.Logger
}

// Config configures a Cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	Logger   *zap.Logger
}

// New opens a Redis client and confirms connectivity with PING.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	cfg.Logger.Info("spotcache-connected", zap.String("addr", cfg.Addr))

	return &Cache{client: client, logger: cfg.Logger}, nil
}

// Get returns the cached string value for key, or ("", false) on miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.Warn("spotcache-get-error", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return val, true
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("spotcache set %s: %w", key, err)
	}
	return nil
}

// PublishSnapshotReplaced notifies subscribers that the active Matrix
// snapshot changed, carrying the new snapshot id as the payload.
func (c *Cache) PublishSnapshotReplaced(ctx context.Context, snapshotID int64) error {
	if err := c.client.Publish(ctx, SnapshotReplacedChannel, snapshotID).Err(); err != nil {
		return fmt.Errorf("publish snapshot-replaced: %w", err)
	}
	return nil
}

// SubscribeSnapshotReplaced returns a channel of raw snapshot-id payloads.
// Callers (the Decision Engine's hot-reload goroutine) parse and act on
// each notification by reloading from the Matrix Store.
func (c *Cache) SubscribeSnapshotReplaced(ctx context.Context) <-chan string {
	sub := c.client.Subscribe(ctx, SnapshotReplacedChannel)
	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for msg := range sub.Channel() {
			select {
			case ch <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
