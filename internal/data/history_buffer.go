package data

import (
	"sync"
	"time"

	"github.com/analfistt/ArbiWeb/internal/model"
)

// BufferConfig holds configuration for the price history buffer.
type BufferConfig struct {
	// Retention is the sliding time window; points older than now-Retention
	// are pruned on every append.
	Retention time.Duration
	// MaxPointsPerSymbol caps each series regardless of age.
	MaxPointsPerSymbol int
}

// DefaultBufferConfig returns sensible default configuration.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		Retention:          24 * time.Hour,
		MaxPointsPerSymbol: 10000,
	}
}

// HistoryBuffer is an append-only, time-bounded store of recent price samples
// per symbol. Out-of-order appends are rejected, so each series stays sorted
// without reordering even when upstream reports a stale update time.
type HistoryBuffer struct {
	points map[string][]model.HistoryPoint
	config BufferConfig
	now    func() time.Time
	mu     sync.RWMutex
}

// NewHistoryBuffer creates a history buffer with default config.
func NewHistoryBuffer() *HistoryBuffer {
	return NewHistoryBufferWithConfig(DefaultBufferConfig())
}

// NewHistoryBufferWithConfig creates a history buffer with custom config.
func NewHistoryBufferWithConfig(config BufferConfig) *HistoryBuffer {
	if config.Retention <= 0 {
		config.Retention = 24 * time.Hour
	}

	return &HistoryBuffer{
		points: make(map[string][]model.HistoryPoint),
		config: config,
		now:    time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (b *HistoryBuffer) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Append records a price observation. Non-positive prices are dropped
// silently, guarding against upstream returning zero or garbage, and so are
// timestamps older than the symbol's newest point: each series must stay
// sorted ascending for Query's cutoff scan and for candle reconstruction.
// After every append the series is pruned to the retention window and the
// per-symbol cap.
func (b *HistoryBuffer) Append(symbol string, price float64, timestamp int64) {
	if price <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	existing := b.points[symbol]
	if n := len(existing); n > 0 && timestamp < existing[n-1].Timestamp {
		return
	}

	points := append(existing, model.HistoryPoint{
		Timestamp: timestamp,
		Price:     price,
	})

	cutoff := b.now().Add(-b.config.Retention).UnixMilli()
	start := 0
	for start < len(points) && points[start].Timestamp < cutoff {
		start++
	}
	points = points[start:]

	if b.config.MaxPointsPerSymbol > 0 && len(points) > b.config.MaxPointsPerSymbol {
		points = points[len(points)-b.config.MaxPointsPerSymbol:]
	}

	b.points[symbol] = points
}

// Query returns all points for a symbol newer than now minus windowMinutes,
// preserving insertion order.
func (b *HistoryBuffer) Query(symbol string, windowMinutes int) []model.HistoryPoint {
	b.mu.RLock()
	defer b.mu.RUnlock()

	points := b.points[symbol]
	if len(points) == 0 {
		return []model.HistoryPoint{}
	}

	cutoff := b.now().Add(-time.Duration(windowMinutes) * time.Minute).UnixMilli()
	start := 0
	for start < len(points) && points[start].Timestamp < cutoff {
		start++
	}

	// Return a copy to prevent external modification
	result := make([]model.HistoryPoint, len(points)-start)
	copy(result, points[start:])
	return result
}

// Size returns the number of stored points for a symbol.
func (b *HistoryBuffer) Size(symbol string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.points[symbol])
}
