package model

// PriceSample is the latest known spot price for a tracked asset.
// One sample per symbol; overwritten on every successful poll.
type PriceSample struct {
	Symbol          string  `json:"symbol"`
	Price           float64 `json:"price"`
	ChangePercent24 float64 `json:"change_percent_24h"`
	Volume24        float64 `json:"volume_24h"`
	Timestamp       int64   `json:"timestamp"`
}

// HistoryPoint is a single price observation in the sliding history window.
type HistoryPoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// Candle represents OHLCV data for a time interval. Timestamps are unix
// milliseconds, aligned to the interval boundary for aggregated candles.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Event is the envelope pushed to websocket subscribers.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Event types the feed originates. Business events (deposit updates, admin
// stream events) are defined by their producers and relayed through the hub
// without interpretation.
const (
	EventConnected   = "connected"
	EventPong        = "pong"
	EventPriceUpdate = "price_update"
)
