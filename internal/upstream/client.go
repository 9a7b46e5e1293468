package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/analfistt/ArbiWeb/internal/model"
)

var (
	// ErrUnknownAsset is returned for symbols with no upstream identifier.
	ErrUnknownAsset = errors.New("unknown asset symbol")
	// ErrRateLimited is returned when the upstream answers HTTP 429.
	ErrRateLimited = errors.New("upstream rate limited")
)

// coinIDs maps tracked ticker symbols to upstream asset identifiers.
var coinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"LTC":  "litecoin",
	"LINK": "chainlink",
}

// ohlcBackoff holds the delays between OHLC retry attempts. Four attempts
// total: the initial call plus one retry per delay.
var ohlcBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second}

// Client fetches spot prices and OHLC candles from the upstream market-data
// HTTP API. It owns retry and rate-limit handling and never synthesizes data;
// degrading on failure is the resolver's job.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an upstream price client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// CoinID resolves a ticker symbol to its upstream identifier.
func CoinID(symbol string) (string, error) {
	id, ok := coinIDs[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return id, nil
}

// KnownSymbols returns every symbol the client can resolve upstream.
func KnownSymbols() []string {
	symbols := make([]string, 0, len(coinIDs))
	for symbol := range coinIDs {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// spotEntry mirrors one asset in the /simple/price response.
type spotEntry struct {
	USD           float64 `json:"usd"`
	USD24hChange  float64 `json:"usd_24h_change"`
	USD24hVol     float64 `json:"usd_24h_vol"`
	LastUpdatedAt int64   `json:"last_updated_at"`
}

// FetchSpotPrices fetches the current spot price for every given symbol in a
// single upstream call. A 429 answer is a soft failure: the error is returned
// once without retrying, since the poller will try again next cycle.
func (c *Client) FetchSpotPrices(ctx context.Context, symbols []string) (map[string]model.PriceSample, error) {
	ids := make([]string, 0, len(symbols))
	idToSymbol := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		id, err := CoinID(symbol)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		idToSymbol[id] = strings.ToUpper(strings.TrimSpace(symbol))
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	query.Set("include_24hr_change", "true")
	query.Set("include_24hr_vol", "true")
	query.Set("include_last_updated_at", "true")

	var raw map[string]spotEntry
	if err := c.getJSON(ctx, "/simple/price?"+query.Encode(), &raw); err != nil {
		if errors.Is(err, ErrRateLimited) {
			c.logger.Warn("spot price fetch rate limited, skipping cycle")
		}
		return nil, err
	}

	samples := make(map[string]model.PriceSample, len(raw))
	for id, entry := range raw {
		symbol, ok := idToSymbol[id]
		if !ok {
			continue
		}
		samples[symbol] = model.PriceSample{
			Symbol:          symbol,
			Price:           entry.USD,
			ChangePercent24: entry.USD24hChange,
			Volume24:        entry.USD24hVol,
			Timestamp:       entry.LastUpdatedAt * 1000,
		}
	}

	return samples, nil
}

// FetchOHLC fetches candles for a symbol covering the last `days` days.
// Transient failures are retried with fixed backoff (1s, 2s, 5s); after the
// final attempt the last error is returned and the caller degrades.
func (c *Client) FetchOHLC(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	id, err := CoinID(symbol)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/coins/%s/ohlc?vs_currency=usd&days=%d", id, days)

	var lastErr error
	for attempt := 0; attempt <= len(ohlcBackoff); attempt++ {
		if attempt > 0 {
			delay := ohlcBackoff[attempt-1]
			c.logger.Warn("retrying OHLC fetch",
				"symbol", symbol,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		// Response is an array of [timestamp, open, high, low, close].
		var raw [][]float64
		if err := c.getJSON(ctx, path, &raw); err != nil {
			lastErr = err
			continue
		}

		candles := make([]model.Candle, 0, len(raw))
		for _, row := range raw {
			if len(row) < 5 {
				continue
			}
			candles = append(candles, model.Candle{
				Timestamp: int64(row[0]),
				Open:      row[1],
				High:      row[2],
				Low:       row[3],
				Close:     row[4],
			})
		}
		return candles, nil
	}

	return nil, fmt.Errorf("OHLC fetch for %s failed after %d attempts: %w", symbol, len(ohlcBackoff)+1, lastErr)
}

// getJSON issues a GET against the upstream API and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode upstream response: %w", err)
	}

	return nil
}
