package data

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/analfistt/ArbiWeb/internal/model"
)

// redisEntry is the serialized form of a cached candle series.
type redisEntry struct {
	Candles   []model.Candle `json:"candles"`
	FetchedAt int64          `json:"fetched_at"`
}

// RedisCandleCache implements CandleCache on Redis so several feed instances
// can share fetched series. Entries carry their own fetch time; Redis expiry
// only reclaims keys long after they stopped being useful as stale fallbacks.
type RedisCandleCache struct {
	client *redis.Client
	logger *slog.Logger
}

// Keys are dropped a day after their last write. Until then an expired-TTL
// series still serves the stale-cache fallback tier.
const redisCandleExpiry = 24 * time.Hour

// NewRedisCandleCache creates a Redis-backed candle cache.
func NewRedisCandleCache(client *redis.Client, logger *slog.Logger) *RedisCandleCache {
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisCandleCache{
		client: client,
		logger: logger,
	}
}

func redisCandleKey(symbol, interval string) string {
	return fmt.Sprintf("candles:%s:%s", symbol, interval)
}

// Get returns the cached series for a key, stale or not. Redis errors are
// logged and reported as a miss so the resolver falls through its chain.
func (c *RedisCandleCache) Get(ctx context.Context, symbol, interval string) (CachedSeries, bool) {
	key := redisCandleKey(symbol, interval)

	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis candle cache read failed", "key", key, "error", err)
		}
		return CachedSeries{}, false
	}

	var entry redisEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.logger.Warn("redis candle cache entry corrupt", "key", key, "error", err)
		return CachedSeries{}, false
	}

	return CachedSeries{
		Candles:   entry.Candles,
		FetchedAt: time.UnixMilli(entry.FetchedAt),
	}, true
}

// Set overwrites the series for a key.
func (c *RedisCandleCache) Set(ctx context.Context, symbol, interval string, candles []model.Candle) error {
	entry := redisEntry{
		Candles:   candles,
		FetchedAt: time.Now().UnixMilli(),
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal candle cache entry: %w", err)
	}

	key := redisCandleKey(symbol, interval)
	if err := c.client.Set(ctx, key, raw, redisCandleExpiry).Err(); err != nil {
		return fmt.Errorf("failed to write candle cache entry: %w", err)
	}

	return nil
}

// Ping checks Redis connection health.
func (c *RedisCandleCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
