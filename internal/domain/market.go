package domain

import "time"

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Timeframe names a candle interval and how many candles of it to
// collect for analysis.
type Timeframe struct {
	Interval string
	Limit    int
}

// DefaultTimeframes covers roughly 24h of short-term, 48h of mid-term
// and 5 days of long-term context.
var DefaultTimeframes = []Timeframe{
	{Interval: "15m", Limit: 96},
	{Interval: "1h", Limit: 48},
	{Interval: "4h", Limit: 30},
}

type NewsItem struct {
	Title string `json:"title"`
	Date  string `json:"date"`
}

// TradeOutcome pairs a closed position with the rationale of the advice
// that opened it, for feeding past performance back into the next
// analysis.
type TradeOutcome struct {
	Position  *Position `json:"position"`
	Rationale string    `json:"rationale,omitempty"`
}

// MarketSnapshot is everything the advice provider sees: current market
// state plus the bot's own trading history.
type MarketSnapshot struct {
	Timestamp     time.Time
	Symbol        string
	CurrentPrice  float64
	WalletBalance float64
	Timeframes    map[string][]Candle
	RecentNews    []NewsItem
	History       []TradeOutcome
	Performance   *PerformanceReport
}
