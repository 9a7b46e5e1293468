package mock

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/analfistt/ArbiWeb/internal/model"
	"github.com/analfistt/ArbiWeb/internal/upstream"
)

// SourceConfig holds configuration for the simulated price source.
type SourceConfig struct {
	BasePrices map[string]float64
	Volatility float64
}

// DefaultSourceConfig returns a sensible default configuration.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		BasePrices: map[string]float64{
			"BTC":  65000.0,
			"ETH":  3200.0,
			"SOL":  145.0,
			"BNB":  580.0,
			"XRP":  0.52,
			"ADA":  0.45,
			"DOGE": 0.12,
			"DOT":  6.8,
			"LTC":  82.0,
			"LINK": 14.5,
		},
		Volatility: 0.005, // 0.5% per step
	}
}

// PriceSource is a simulated upstream for demo deployments and tests. It
// satisfies the same contract as the HTTP client: a random walk around per
// symbol base prices, with synthetic OHLC series derived from the same walk.
type PriceSource struct {
	config SourceConfig
	prices map[string]float64
	rng    *rand.Rand
	now    func() time.Time
	mu     sync.Mutex
}

// NewPriceSource creates a simulated source with default config.
func NewPriceSource() *PriceSource {
	return NewPriceSourceWithConfig(DefaultSourceConfig())
}

// NewPriceSourceWithConfig creates a simulated source with custom config.
func NewPriceSourceWithConfig(config SourceConfig) *PriceSource {
	prices := make(map[string]float64, len(config.BasePrices))
	for symbol, price := range config.BasePrices {
		prices[symbol] = price
	}

	return &PriceSource{
		config: config,
		prices: prices,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// FetchSpotPrices advances the walk one step for each requested symbol.
func (s *PriceSource) FetchSpotPrices(ctx context.Context, symbols []string) (map[string]model.PriceSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	samples := make(map[string]model.PriceSample, len(symbols))

	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		price, ok := s.prices[symbol]
		if !ok {
			continue
		}

		price = s.step(price)
		s.prices[symbol] = price

		base := s.config.BasePrices[symbol]
		change := 0.0
		if base > 0 {
			change = (price - base) / base * 100
		}

		samples[symbol] = model.PriceSample{
			Symbol:          symbol,
			Price:           price,
			ChangePercent24: change,
			Volume24:        price * (1e5 + s.rng.Float64()*1e6),
			Timestamp:       now,
		}
	}

	return samples, nil
}

// FetchOHLC generates a synthetic candle series covering the last `days`
// days, with hourly resolution for short windows and daily beyond a week,
// mirroring the real upstream's native granularity.
func (s *PriceSource) FetchOHLC(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	price, ok := s.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", upstream.ErrUnknownAsset, symbol)
	}

	step := time.Hour
	if days > 7 {
		step = 24 * time.Hour
	}
	count := int(time.Duration(days) * 24 * time.Hour / step)

	now := s.now()
	candles := make([]model.Candle, 0, count)

	// Walk backwards from the current price so the series ends where the
	// spot feed is.
	walk := price
	reversed := make([]model.Candle, 0, count)
	for i := 0; i < count; i++ {
		open := s.step(walk)
		high := walk
		low := walk
		if open > high {
			high = open
		}
		if open < low {
			low = open
		}
		wick := 1 + s.rng.Float64()*s.config.Volatility
		reversed = append(reversed, model.Candle{
			Timestamp: now.Add(-time.Duration(i) * step).Truncate(step).UnixMilli(),
			Open:      open,
			High:      high * wick,
			Low:       low / wick,
			Close:     walk,
		})
		walk = open
	}

	for i := len(reversed) - 1; i >= 0; i-- {
		candles = append(candles, reversed[i])
	}

	return candles, nil
}

func (s *PriceSource) step(price float64) float64 {
	next := price * (1 + s.rng.NormFloat64()*s.config.Volatility)
	if next <= 0 {
		next = price * 0.99
	}
	return next
}
