package service

import "time"

// Timeframe describes one supported chart interval: how far the chart looks
// back, how wide the buckets are when candles must be rebuilt from history,
// and which upstream "days" parameter covers the window. Lookback filtering
// corrects for the upstream API's coarser native granularity.
type Timeframe struct {
	Lookback     time.Duration
	Bucket       time.Duration
	UpstreamDays int
}

var timeframes = map[string]Timeframe{
	"1H":  {Lookback: time.Hour, Bucket: 5 * time.Minute, UpstreamDays: 1},
	"4H":  {Lookback: 4 * time.Hour, Bucket: 15 * time.Minute, UpstreamDays: 1},
	"24H": {Lookback: 24 * time.Hour, Bucket: time.Hour, UpstreamDays: 1},
	"7D":  {Lookback: 7 * 24 * time.Hour, Bucket: 4 * time.Hour, UpstreamDays: 7},
	"30D": {Lookback: 30 * 24 * time.Hour, Bucket: 12 * time.Hour, UpstreamDays: 30},
	"90D": {Lookback: 90 * 24 * time.Hour, Bucket: 24 * time.Hour, UpstreamDays: 90},
	"1Y":  {Lookback: 365 * 24 * time.Hour, Bucket: 24 * time.Hour, UpstreamDays: 365},
}

// DefaultInterval is used when a caller does not specify one.
const DefaultInterval = "24H"

// LookupTimeframe resolves an interval name, falling back to the default for
// unknown values so the chart path never dead-ends on a bad query string.
func LookupTimeframe(interval string) Timeframe {
	if tf, ok := timeframes[interval]; ok {
		return tf
	}
	return timeframes[DefaultInterval]
}

// KnownInterval reports whether the interval name is supported.
func KnownInterval(interval string) bool {
	_, ok := timeframes[interval]
	return ok
}

// SupportedIntervals lists the supported interval names.
func SupportedIntervals() []string {
	return []string{"1H", "4H", "24H", "7D", "30D", "90D", "1Y"}
}
