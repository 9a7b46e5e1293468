package data

import (
	"context"
	"sync"
	"time"

	"github.com/analfistt/ArbiWeb/internal/model"
)

// CachedSeries is a fetched candle series together with its fetch time, so
// the resolver can decide between a fresh hit and a stale fallback.
type CachedSeries struct {
	Candles   []model.Candle
	FetchedAt time.Time
}

// CandleCache stores fetched candle series per (symbol, interval). Entries
// are superseded by newer fetches of the same key and remain readable after
// expiry: a stale series still beats an empty chart when upstream is down.
type CandleCache interface {
	Get(ctx context.Context, symbol, interval string) (CachedSeries, bool)
	Set(ctx context.Context, symbol, interval string, candles []model.Candle) error
}

// MemoryCandleCache implements CandleCache with a process-local map.
type MemoryCandleCache struct {
	entries map[string]CachedSeries
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryCandleCache creates an empty in-memory candle cache.
func NewMemoryCandleCache() *MemoryCandleCache {
	return &MemoryCandleCache{
		entries: make(map[string]CachedSeries),
		now:     time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (c *MemoryCandleCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func cacheKey(symbol, interval string) string {
	return symbol + ":" + interval
}

// Get returns the cached series for a key, stale or not.
func (c *MemoryCandleCache) Get(ctx context.Context, symbol, interval string) (CachedSeries, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(symbol, interval)]
	if !ok {
		return CachedSeries{}, false
	}

	// Copy so callers can trim without mutating the cache.
	candles := make([]model.Candle, len(entry.Candles))
	copy(candles, entry.Candles)
	return CachedSeries{Candles: candles, FetchedAt: entry.FetchedAt}, true
}

// Set overwrites the series for a key.
func (c *MemoryCandleCache) Set(ctx context.Context, symbol, interval string, candles []model.Candle) error {
	stored := make([]model.Candle, len(candles))
	copy(stored, candles)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(symbol, interval)] = CachedSeries{
		Candles:   stored,
		FetchedAt: c.now(),
	}
	return nil
}
