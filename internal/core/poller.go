package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/analfistt/ArbiWeb/internal/model"
	"github.com/analfistt/ArbiWeb/internal/upstream"
)

// SpotFetcher is the upstream spot-price call the poller drives.
type SpotFetcher interface {
	FetchSpotPrices(ctx context.Context, symbols []string) (map[string]model.PriceSample, error)
}

// PriceSink receives the current sample for each symbol.
type PriceSink interface {
	Set(sample model.PriceSample)
}

// HistorySink receives one history point per symbol per successful poll.
type HistorySink interface {
	Append(symbol string, price float64, timestamp int64)
}

// Broadcaster fans the fresh snapshot out to live subscribers.
type Broadcaster interface {
	BroadcastAll(event string, payload interface{})
}

// Poller drives the upstream spot-price fetch on a fixed interval and feeds
// the price store, the history buffer and the live broadcaster. A failed
// cycle keeps the previous values; the next tick simply tries again.
type Poller struct {
	fetcher     SpotFetcher
	prices      PriceSink
	history     HistorySink
	broadcaster Broadcaster
	symbols     []string
	interval    time.Duration
	logger      *slog.Logger

	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	mu      sync.Mutex
}

// NewPoller creates a polling scheduler. The broadcaster may be nil when no
// live transport is wired (tests, batch tooling).
func NewPoller(fetcher SpotFetcher, prices PriceSink, history HistorySink, broadcaster Broadcaster, symbols []string, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 20 * time.Second
	}

	return &Poller{
		fetcher:     fetcher,
		prices:      prices,
		history:     history,
		broadcaster: broadcaster,
		symbols:     symbols,
		interval:    interval,
		logger:      logger,
	}
}

// Start performs one immediate fetch, then polls on the fixed interval until
// Stop is called or the context is cancelled. Calling Start on a running
// poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	p.logger.Info("starting price poller",
		"symbols", p.symbols,
		"interval", p.interval.String())

	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer p.logger.Info("price poller stopped")

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// poll runs one fetch cycle.
func (p *Poller) poll(ctx context.Context) {
	samples, err := p.fetcher.FetchSpotPrices(ctx, p.symbols)
	if err != nil {
		if errors.Is(err, upstream.ErrRateLimited) {
			p.logger.Warn("spot poll rate limited, keeping previous prices")
		} else if ctx.Err() == nil {
			p.logger.Error("spot poll failed", "error", err)
		}
		return
	}

	snapshot := make([]model.PriceSample, 0, len(samples))
	for _, sample := range samples {
		p.prices.Set(sample)
		p.history.Append(sample.Symbol, sample.Price, sample.Timestamp)
		snapshot = append(snapshot, sample)
	}

	p.logger.Debug("spot poll completed", "symbols", len(snapshot))

	if p.broadcaster != nil && len(snapshot) > 0 {
		p.broadcaster.BroadcastAll(model.EventPriceUpdate, snapshot)
	}
}

// Stop cancels the polling loop and waits for the in-flight cycle to finish.
// Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false

	p.cancel()
	<-p.done
}
