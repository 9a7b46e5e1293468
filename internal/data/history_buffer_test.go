package data

import (
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAppendRejectsNonPositivePrices(t *testing.T) {
	buffer := NewHistoryBuffer()

	tests := []struct {
		name  string
		price float64
	}{
		{"zero price", 0},
		{"negative price", -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := buffer.Size("BTC")
			buffer.Append("BTC", tt.price, time.Now().UnixMilli())
			if got := buffer.Size("BTC"); got != before {
				t.Errorf("Expected size %d, got %d", before, got)
			}
		})
	}
}

func TestAppendRejectsOutOfOrderTimestamps(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	buffer := NewHistoryBuffer()
	buffer.SetClock(fixedClock(now))

	recent := now.Add(-time.Minute).UnixMilli()
	buffer.Append("BTC", 50000, recent)

	// A stale upstream update time must not land behind the newest point.
	buffer.Append("BTC", 49000, now.Add(-30*time.Minute).UnixMilli())

	if size := buffer.Size("BTC"); size != 1 {
		t.Fatalf("Expected stale append rejected, got %d points", size)
	}

	points := buffer.Query("BTC", 5)
	if len(points) != 1 || points[0].Timestamp != recent {
		t.Errorf("Expected only the recent point in a 5m window, got %+v", points)
	}

	// Equal timestamps are still accepted; only regressions are rejected.
	buffer.Append("BTC", 50100, recent)
	if size := buffer.Size("BTC"); size != 2 {
		t.Errorf("Expected duplicate-timestamp append accepted, got %d points", size)
	}
}

func TestAppendPrunesBeyondRetention(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	buffer := NewHistoryBuffer()
	buffer.SetClock(fixedClock(now))

	// Points spanning 30 hours, one per hour.
	for i := 30; i >= 0; i-- {
		ts := now.Add(-time.Duration(i) * time.Hour).UnixMilli()
		buffer.Append("BTC", 50000+float64(i), ts)
	}

	points := buffer.Query("BTC", 24*60)
	cutoff := now.Add(-24 * time.Hour).UnixMilli()
	for _, p := range points {
		if p.Timestamp < cutoff {
			t.Errorf("Point at %d is older than the 24h cutoff %d", p.Timestamp, cutoff)
		}
	}

	// The append-time prune also bounds total size.
	if size := buffer.Size("BTC"); size != 25 {
		t.Errorf("Expected 25 retained points, got %d", size)
	}
}

func TestAppendEnforcesHardCap(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	buffer := NewHistoryBufferWithConfig(BufferConfig{
		Retention:          24 * time.Hour,
		MaxPointsPerSymbol: 10,
	})
	buffer.SetClock(fixedClock(now))

	for i := 0; i < 50; i++ {
		ts := now.Add(-time.Duration(50-i) * time.Second).UnixMilli()
		buffer.Append("ETH", 3000, ts)
	}

	if size := buffer.Size("ETH"); size != 10 {
		t.Errorf("Expected hard cap of 10 points, got %d", size)
	}
}

func TestQueryWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	buffer := NewHistoryBuffer()
	buffer.SetClock(fixedClock(now))

	// One point every 10 minutes over 2 hours.
	for i := 12; i >= 0; i-- {
		ts := now.Add(-time.Duration(i) * 10 * time.Minute).UnixMilli()
		buffer.Append("BTC", 50000+float64(i), ts)
	}

	tests := []struct {
		name          string
		windowMinutes int
		expectedCount int
	}{
		{"last hour", 60, 7},
		{"last 30 minutes", 30, 4},
		{"full window", 120, 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := buffer.Query("BTC", tt.windowMinutes)
			if len(points) != tt.expectedCount {
				t.Errorf("Expected %d points, got %d", tt.expectedCount, len(points))
			}
		})
	}
}

func TestQueryUnknownSymbol(t *testing.T) {
	buffer := NewHistoryBuffer()

	points := buffer.Query("NOPE", 60)
	if len(points) != 0 {
		t.Errorf("Expected empty result, got %d points", len(points))
	}
}

func TestQueryPreservesOrder(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	buffer := NewHistoryBuffer()
	buffer.SetClock(fixedClock(now))

	for i := 10; i >= 1; i-- {
		ts := now.Add(-time.Duration(i) * time.Minute).UnixMilli()
		buffer.Append("BTC", float64(100+i), ts)
	}

	points := buffer.Query("BTC", 60)
	for i := 1; i < len(points); i++ {
		if points[i].Timestamp < points[i-1].Timestamp {
			t.Fatalf("Points out of order at index %d", i)
		}
	}
}
