package models

import "time"

// TimeWindowSpec is one entry of the static window catalog. Either
// OffsetMinutes is set (signed, negative = before the event) or Anchor
// names a symbolic target resolved against the session calendar.
type TimeWindowSpec struct {
	Name          string
	OffsetMinutes int
	Anchor        string // "", AnchorEndOfDay or AnchorNextOpen
}

const (
	AnchorEndOfDay = "eod"
	AnchorNextOpen = "next_open"
)

// WindowTarget is a catalog entry resolved against a concrete event time.
type WindowTarget struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Regime labels for the trailing benchmark trend.
const (
	RegimeBull     = "bull"
	RegimeBear     = "bear"
	RegimeSideways = "sideways"
	RegimeUnknown  = "unknown"
)

// PerformanceWindow holds the relative-performance metrics of one window.
// Nullable metrics are pointers: nil means "could not be measured", which
// is never collapsed into zero.
type PerformanceWindow struct {
	Name string

	InstrumentReturnPct *float64
	BenchmarkReturnPct  map[string]*float64 // by benchmark group
	Alpha               map[string]*float64 // by benchmark group

	Volatility         *float64
	RelativeVolatility *float64

	RelativeVolume *float64
	VolumeSpike    *bool

	TradingHours bool
	Regime       string
}

// EventMarketContext carries the per-event (window-independent) market
// metrics stamped onto every window of the event.
type EventMarketContext struct {
	RelativeVolume *float64
	VolumeSpike    *bool
	TradingHours   bool
	Regime         string
}
