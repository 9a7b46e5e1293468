package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/analfistt/ArbiWeb/internal/data"
	"github.com/analfistt/ArbiWeb/internal/model"
)

// PriceSource is the upstream market-data client the resolver falls back
// from. It retries internally; a returned error means retries are exhausted.
type PriceSource interface {
	FetchSpotPrices(ctx context.Context, symbols []string) (map[string]model.PriceSample, error)
	FetchOHLC(ctx context.Context, symbol string, days int) ([]model.Candle, error)
}

// HistorySource supplies recent price observations for candle reconstruction.
type HistorySource interface {
	Query(symbol string, windowMinutes int) []model.HistoryPoint
}

// SpotSource supplies the current spot price map maintained by the poller.
type SpotSource interface {
	Get(symbol string) (model.PriceSample, bool)
	All() []model.PriceSample
}

// PriceService answers candle, spot-price and history queries for the API
// layer. GetCandles never returns an error and never returns an empty slice:
// charts render degraded data, not failures.
type PriceService struct {
	upstream PriceSource
	cache    data.CandleCache
	history  HistorySource
	prices   SpotSource
	cacheTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewPriceService creates a price service with injected dependencies.
func NewPriceService(upstream PriceSource, cache data.CandleCache, history HistorySource, prices SpotSource, cacheTTL time.Duration, logger *slog.Logger) *PriceService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &PriceService{
		upstream: upstream,
		cache:    cache,
		history:  history,
		prices:   prices,
		cacheTTL: cacheTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source, for tests.
func (s *PriceService) SetClock(now func() time.Time) {
	s.now = now
}

// GetPrices returns the current sample for every tracked symbol.
func (s *PriceService) GetPrices() []model.PriceSample {
	return s.prices.All()
}

// GetPrice returns the current sample for one symbol.
func (s *PriceService) GetPrice(symbol string) (model.PriceSample, bool) {
	return s.prices.Get(symbol)
}

// GetHistoricalPrices returns raw history points for short-timeframe charts.
func (s *PriceService) GetHistoricalPrices(symbol string, minutes int) []model.HistoryPoint {
	return s.history.Query(symbol, minutes)
}

// candleAttempt is one tier of the degradation chain. It reports whether it
// produced a usable (non-empty) series.
type candleAttempt func(ctx context.Context, symbol string, tf Timeframe, limit int) ([]model.Candle, bool)

// GetCandles resolves a candle series through an ordered chain of tiers:
// fresh cache, upstream fetch, stale cache, history reconstruction, synthetic
// spot-price candle, and finally a single all-zero candle. Later tiers run
// only when earlier ones yield nothing.
func (s *PriceService) GetCandles(ctx context.Context, symbol, interval string, limit int) []model.Candle {
	tf := LookupTimeframe(interval)

	attempts := []candleAttempt{
		s.fromFreshCache(interval),
		s.fromUpstream(interval),
		s.fromStaleCache(interval),
		s.fromHistory,
		s.fromSpotPrice,
	}

	for _, attempt := range attempts {
		if candles, ok := attempt(ctx, symbol, tf, limit); ok {
			return candles
		}
	}

	// Cold start with no observations at all: an all-zero candle keeps the
	// chart contract of "never empty, never an error".
	return []model.Candle{{}}
}

func (s *PriceService) fromFreshCache(interval string) candleAttempt {
	return func(ctx context.Context, symbol string, tf Timeframe, limit int) ([]model.Candle, bool) {
		entry, ok := s.cache.Get(ctx, symbol, interval)
		if !ok || s.now().Sub(entry.FetchedAt) >= s.cacheTTL {
			return nil, false
		}

		candles := s.windowAndTrim(entry.Candles, tf, limit)
		return candles, len(candles) > 0
	}
}

func (s *PriceService) fromUpstream(interval string) candleAttempt {
	return func(ctx context.Context, symbol string, tf Timeframe, limit int) ([]model.Candle, bool) {
		fetched, err := s.upstream.FetchOHLC(ctx, symbol, tf.UpstreamDays)
		if err != nil {
			s.logger.Warn("upstream OHLC fetch failed, degrading",
				"symbol", symbol,
				"interval", interval,
				"error", err)
			return nil, false
		}

		if err := s.cache.Set(ctx, symbol, interval, fetched); err != nil {
			s.logger.Warn("failed to cache candle series",
				"symbol", symbol,
				"interval", interval,
				"error", err)
		}

		candles := s.windowAndTrim(fetched, tf, limit)
		return candles, len(candles) > 0
	}
}

func (s *PriceService) fromStaleCache(interval string) candleAttempt {
	return func(ctx context.Context, symbol string, tf Timeframe, limit int) ([]model.Candle, bool) {
		entry, ok := s.cache.Get(ctx, symbol, interval)
		if !ok {
			return nil, false
		}

		s.logger.Info("serving stale candle cache",
			"symbol", symbol,
			"interval", interval,
			"age", s.now().Sub(entry.FetchedAt).String())

		candles := s.windowAndTrim(entry.Candles, tf, limit)
		return candles, len(candles) > 0
	}
}

// fromHistory reconstructs approximate candles by bucketing raw history
// points. A bucket with a single point produces a flat candle.
func (s *PriceService) fromHistory(ctx context.Context, symbol string, tf Timeframe, limit int) ([]model.Candle, bool) {
	points := s.history.Query(symbol, int(tf.Lookback.Minutes()))
	if len(points) == 0 {
		return nil, false
	}

	candles := bucketHistory(points, tf.Bucket)
	candles = s.windowAndTrim(candles, tf, limit)
	return candles, len(candles) > 0
}

// fromSpotPrice produces one flat candle carrying the last known spot price.
func (s *PriceService) fromSpotPrice(ctx context.Context, symbol string, tf Timeframe, limit int) ([]model.Candle, bool) {
	sample, ok := s.prices.Get(symbol)
	if !ok || sample.Price <= 0 {
		return nil, false
	}

	return []model.Candle{{
		Timestamp: s.now().UnixMilli(),
		Open:      sample.Price,
		High:      sample.Price,
		Low:       sample.Price,
		Close:     sample.Price,
	}}, true
}

// windowAndTrim drops candles older than the timeframe's lookback window and
// keeps at most the last `limit` candles. limit <= 0 means no trim.
func (s *PriceService) windowAndTrim(candles []model.Candle, tf Timeframe, limit int) []model.Candle {
	cutoff := s.now().Add(-tf.Lookback).UnixMilli()

	filtered := make([]model.Candle, 0, len(candles))
	for _, candle := range candles {
		if candle.Timestamp >= cutoff {
			filtered = append(filtered, candle)
		}
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	return filtered
}

// bucketHistory aggregates ordered history points into fixed-width candles:
// first price opens the bucket, min/max bound it, last price closes it.
func bucketHistory(points []model.HistoryPoint, bucket time.Duration) []model.Candle {
	bucketMs := bucket.Milliseconds()
	if bucketMs <= 0 {
		return nil
	}

	var result []model.Candle
	var current *model.Candle

	for _, point := range points {
		bucketTime := (point.Timestamp / bucketMs) * bucketMs

		if current == nil || current.Timestamp != bucketTime {
			if current != nil {
				result = append(result, *current)
			}
			current = &model.Candle{
				Timestamp: bucketTime,
				Open:      point.Price,
				High:      point.Price,
				Low:       point.Price,
				Close:     point.Price,
			}
			continue
		}

		if point.Price > current.High {
			current.High = point.Price
		}
		if point.Price < current.Low {
			current.Low = point.Price
		}
		current.Close = point.Price
	}

	if current != nil {
		result = append(result, *current)
	}

	return result
}
