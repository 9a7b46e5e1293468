package data

import (
	"sync"

	"github.com/analfistt/ArbiWeb/internal/model"
)

// PriceStore holds the current spot price per tracked symbol. The poller is
// the only writer; readers are the API layer and the candle resolver.
type PriceStore struct {
	samples map[string]model.PriceSample
	mu      sync.RWMutex
}

// NewPriceStore creates an empty price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		samples: make(map[string]model.PriceSample),
	}
}

// Set stores a sample, overwriting the previous one for the symbol. Updates
// with a timestamp older than the stored sample are discarded: the upstream
// source is the origin of truth and a stale poll must not rewind the feed.
func (s *PriceStore) Set(sample model.PriceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.samples[sample.Symbol]; ok && sample.Timestamp < prev.Timestamp {
		return
	}
	s.samples[sample.Symbol] = sample
}

// Get returns the current sample for a symbol, if one has been observed.
func (s *PriceStore) Get(symbol string) (model.PriceSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sample, ok := s.samples[symbol]
	return sample, ok
}

// All returns a snapshot of every tracked sample.
func (s *PriceStore) All() []model.PriceSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.PriceSample, 0, len(s.samples))
	for _, sample := range s.samples {
		result = append(result, sample)
	}
	return result
}
