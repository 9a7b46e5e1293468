package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func shortBackoff(t *testing.T) {
	t.Helper()
	original := ohlcBackoff
	ohlcBackoff = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { ohlcBackoff = original })
}

func TestCoinID(t *testing.T) {
	tests := []struct {
		name      string
		symbol    string
		expected  string
		expectErr bool
	}{
		{"known symbol", "BTC", "bitcoin", false},
		{"lowercase symbol", "eth", "ethereum", false},
		{"padded symbol", "  sol ", "solana", false},
		{"unknown symbol", "WAT", "", true},
		{"empty symbol", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := CoinID(tt.symbol)

			if tt.expectErr {
				if !errors.Is(err, ErrUnknownAsset) {
					t.Errorf("Expected ErrUnknownAsset, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if id != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, id)
			}
		})
	}
}

func TestFetchSpotPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("vs_currencies") != "usd" {
			t.Errorf("Expected vs_currencies=usd, got %s", query.Get("vs_currencies"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"bitcoin": {"usd": 50000.5, "usd_24h_change": 1.2, "usd_24h_vol": 3e9, "last_updated_at": 1717243200},
			"ethereum": {"usd": 3000, "usd_24h_change": -0.8, "usd_24h_vol": 1e9, "last_updated_at": 1717243200}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)

	samples, err := client.FetchSpotPrices(context.Background(), []string{"BTC", "ETH"})
	if err != nil {
		t.Fatalf("FetchSpotPrices failed: %v", err)
	}

	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}

	btc := samples["BTC"]
	if btc.Price != 50000.5 {
		t.Errorf("Expected BTC at 50000.5, got %f", btc.Price)
	}
	if btc.ChangePercent24 != 1.2 {
		t.Errorf("Expected 24h change 1.2, got %f", btc.ChangePercent24)
	}
	if btc.Timestamp != 1717243200000 {
		t.Errorf("Expected millisecond timestamp, got %d", btc.Timestamp)
	}
}

func TestFetchSpotPricesUnknownSymbol(t *testing.T) {
	client := NewClient("http://unused", time.Second, nil)

	_, err := client.FetchSpotPrices(context.Background(), []string{"BTC", "WAT"})
	if !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("Expected ErrUnknownAsset, got %v", err)
	}
}

func TestFetchSpotPricesRateLimitedIsNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)

	_, err := client.FetchSpotPrices(context.Background(), []string{"BTC"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Spot path must not retry within a cycle, got %d calls", calls)
	}
}

func TestFetchOHLC(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/ohlc" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("days") != "1" {
			t.Errorf("Expected days=1, got %s", r.URL.Query().Get("days"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[[1717243200000, 100, 110, 95, 105], [1717245000000, 105, 108, 101, 102]]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)

	candles, err := client.FetchOHLC(context.Background(), "BTC", 1)
	if err != nil {
		t.Fatalf("FetchOHLC failed: %v", err)
	}

	if len(candles) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(candles))
	}

	first := candles[0]
	if first.Timestamp != 1717243200000 || first.Open != 100 || first.High != 110 || first.Low != 95 || first.Close != 105 {
		t.Errorf("Unexpected candle: %+v", first)
	}
}

func TestFetchOHLCRetriesOnRateLimit(t *testing.T) {
	shortBackoff(t)

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[[1717243200000, 100, 110, 95, 105]]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)

	candles, err := client.FetchOHLC(context.Background(), "BTC", 1)
	if err != nil {
		t.Fatalf("FetchOHLC failed after retries: %v", err)
	}
	if len(candles) != 1 {
		t.Errorf("Expected 1 candle, got %d", len(candles))
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestFetchOHLCExhaustsRetries(t *testing.T) {
	shortBackoff(t)

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)

	_, err := client.FetchOHLC(context.Background(), "BTC", 1)
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected wrapped ErrRateLimited, got %v", err)
	}

	// Initial attempt plus one retry per backoff delay.
	if calls != len(ohlcBackoff)+1 {
		t.Errorf("Expected %d attempts, got %d", len(ohlcBackoff)+1, calls)
	}
}

func TestFetchOHLCUnknownAssetFailsFast(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)

	_, err := client.FetchOHLC(context.Background(), "WAT", 1)
	if !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("Expected ErrUnknownAsset, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Unknown asset must not hit upstream, got %d calls", calls)
	}
}

func TestFetchOHLCCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.FetchOHLC(ctx, "BTC", 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Cancellation did not interrupt the backoff wait")
	}
}
