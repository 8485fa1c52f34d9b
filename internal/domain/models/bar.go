package models

import "time"

// Bar is one immutable OHLCV bar from the price series store.
// Bars are unique by (ticker, timestamp, timeframe, source) and ordered
// by timestamp within a series.
type Bar struct {
	Ticker    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	VWAP      *float64
	Source    string
	Timeframe string
}

// PricePoint is a resolved price near a requested timestamp.
// Confidence is 1 at zero distance and decays linearly to 0 at the
// tolerance boundary. A point is never fabricated: callers get
// (PricePoint, false) when no bar lies within tolerance.
type PricePoint struct {
	Price     float64
	Timestamp time.Time
	Confidence float64
}
