package alpha

import (
	"context"
	"testing"
	"time"

	"AlphaForge/internal/domain/models"
	drepo "AlphaForge/internal/domain/repository"
	"AlphaForge/internal/services/quality"
	"AlphaForge/internal/services/sessions"
	"AlphaForge/pkg/config"
)

// fakeResolver serves pre-seeded bars per (ticker, timeframe) with the
// same nearest-bar contract as the real resolver.
type fakeResolver struct {
	bars map[string][]models.Bar
}

func (f *fakeResolver) key(ticker string, tf drepo.Timeframe) string {
	return ticker + "/" + string(tf)
}

func (f *fakeResolver) add(ticker string, tf drepo.Timeframe, bars ...models.Bar) {
	if f.bars == nil {
		f.bars = make(map[string][]models.Bar)
	}
	k := f.key(ticker, tf)
	f.bars[k] = append(f.bars[k], bars...)
}

func (f *fakeResolver) Resolve(ctx context.Context, ticker string, target time.Time, tolerance time.Duration, tf drepo.Timeframe) (models.PricePoint, bool) {
	best := -1
	var bestDist time.Duration
	bars := f.bars[f.key(ticker, tf)]
	for i, b := range bars {
		d := target.Sub(b.Timestamp)
		if d < 0 {
			d = -d
		}
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best == -1 || bestDist > tolerance {
		return models.PricePoint{}, false
	}
	return models.PricePoint{Price: bars[best].Close, Timestamp: bars[best].Timestamp, Confidence: 1}, true
}

func (f *fakeResolver) Warm(ctx context.Context, ticker string, from, to time.Time, tf drepo.Timeframe) (int, error) {
	return len(f.bars[f.key(ticker, tf)]), nil
}

func (f *fakeResolver) Range(ticker string, from, to time.Time, tf drepo.Timeframe) []models.Bar {
	var out []models.Bar
	for _, b := range f.bars[f.key(ticker, tf)] {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			out = append(out, b)
		}
	}
	return out
}

func bar(ts time.Time, close, volume float64) models.Bar {
	return models.Bar{Timestamp: ts, Open: close, High: close, Low: close, Close: close, Volume: volume}
}

func utcCal(t *testing.T) *sessions.Calendar {
	t.Helper()
	cal, err := sessions.New("zzzz", "UTC", "09:30", "16:00")
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	return cal
}

func newCalc(r *fakeResolver, cal *sessions.Calendar, groups []config.BenchmarkGroup) *Calculator {
	return NewCalculator(r, cal, NewRegimeClassifier(5, -5), groups, "market", 3.0, 20, 30)
}

func TestComputeWindowAlpha(t *testing.T) {
	ev := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	end := ev.Add(time.Hour)
	fr := &fakeResolver{}
	// instrument +3%, benchmark +2% over the window
	fr.add("AAPL", drepo.TF1m, bar(ev, 100, 0), bar(end, 103, 0))
	fr.add("SPY", drepo.TF1m, bar(ev, 500, 0), bar(end, 510, 0))
	groups := []config.BenchmarkGroup{{Name: "market", Tickers: []string{"SPY"}}}

	calc := newCalc(fr, utcCal(t), groups)
	tr := quality.NewTracker()
	w := calc.ComputeWindow(context.Background(), "AAPL",
		models.WindowTarget{Name: "post_1h", Start: ev, End: end},
		5*time.Minute, models.EventMarketContext{}, tr)

	if w.InstrumentReturnPct == nil || !closeTo(*w.InstrumentReturnPct, 3.0) {
		t.Fatalf("instrument return = %v, want 3.0", w.InstrumentReturnPct)
	}
	if w.BenchmarkReturnPct["market"] == nil || !closeTo(*w.BenchmarkReturnPct["market"], 2.0) {
		t.Fatalf("benchmark return = %v, want 2.0", w.BenchmarkReturnPct["market"])
	}
	if w.Alpha["market"] == nil || !closeTo(*w.Alpha["market"], 1.0) {
		t.Fatalf("alpha = %v, want 1.0", w.Alpha["market"])
	}
	if dq := tr.Score(); dq.Completeness != 1 {
		t.Fatalf("completeness = %v, want 1", dq.Completeness)
	}
}

func TestComputeWindowNullPropagation(t *testing.T) {
	ev := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	end := ev.Add(time.Hour)
	fr := &fakeResolver{}
	fr.add("AAPL", drepo.TF1m, bar(ev, 100, 0), bar(end, 103, 0))
	// no SPY bars: benchmark unresolvable
	groups := []config.BenchmarkGroup{{Name: "market", Tickers: []string{"SPY"}}}

	calc := newCalc(fr, utcCal(t), groups)
	tr := quality.NewTracker()
	w := calc.ComputeWindow(context.Background(), "AAPL",
		models.WindowTarget{Name: "post_1h", Start: ev, End: end},
		5*time.Minute, models.EventMarketContext{}, tr)

	if w.InstrumentReturnPct == nil {
		t.Fatalf("instrument return must survive benchmark failure")
	}
	if w.BenchmarkReturnPct["market"] != nil {
		t.Fatalf("missing benchmark must stay nil, got %v", *w.BenchmarkReturnPct["market"])
	}
	if w.Alpha["market"] != nil {
		t.Fatalf("alpha with missing benchmark must stay nil, got %v", *w.Alpha["market"])
	}
	dq := tr.Score()
	if dq.Completeness >= 1 {
		t.Fatalf("failed resolutions must lower completeness, got %v", dq.Completeness)
	}
	if len(dq.MissingWindows) != 1 || dq.MissingWindows[0] != "post_1h" {
		t.Fatalf("missing windows = %v", dq.MissingWindows)
	}
}

func TestComputeWindowGroupMeanOverNonNull(t *testing.T) {
	ev := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	end := ev.Add(time.Hour)
	fr := &fakeResolver{}
	fr.add("AAPL", drepo.TF1m, bar(ev, 100, 0), bar(end, 100, 0))
	fr.add("SPY", drepo.TF1m, bar(ev, 100, 0), bar(end, 101, 0)) // +1%
	fr.add("VOO", drepo.TF1m, bar(ev, 100, 0), bar(end, 103, 0)) // +3%
	// IVV has no bars and must not drag the mean
	groups := []config.BenchmarkGroup{{Name: "market", Tickers: []string{"SPY", "VOO", "IVV"}}}

	calc := newCalc(fr, utcCal(t), groups)
	w := calc.ComputeWindow(context.Background(), "AAPL",
		models.WindowTarget{Name: "w", Start: ev, End: end},
		5*time.Minute, models.EventMarketContext{}, quality.NewTracker())

	if w.BenchmarkReturnPct["market"] == nil || !closeTo(*w.BenchmarkReturnPct["market"], 2.0) {
		t.Fatalf("group mean = %v, want 2.0", w.BenchmarkReturnPct["market"])
	}
}

func TestWindowVolatilityPopulationStdDev(t *testing.T) {
	ev := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	end := ev.Add(2 * time.Minute)
	fr := &fakeResolver{}
	// returns +10%, -10%: population stddev is exactly 10
	fr.add("AAPL", drepo.TF1m,
		bar(ev, 100, 0),
		bar(ev.Add(time.Minute), 110, 0),
		bar(end, 99, 0),
	)
	groups := []config.BenchmarkGroup{{Name: "market", Tickers: []string{"SPY"}}}

	calc := newCalc(fr, utcCal(t), groups)
	w := calc.ComputeWindow(context.Background(), "AAPL",
		models.WindowTarget{Name: "w", Start: ev, End: end},
		5*time.Minute, models.EventMarketContext{}, quality.NewTracker())

	if w.Volatility == nil || !closeTo(*w.Volatility, 10.0) {
		t.Fatalf("volatility = %v, want 10.0", w.Volatility)
	}
	// single-bar benchmark: relative volatility stays nil
	if w.RelativeVolatility != nil {
		t.Fatalf("relative volatility without benchmark bars must be nil")
	}
}

func TestMarketContextRelativeVolumeAndSpike(t *testing.T) {
	ev := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	fr := &fakeResolver{}
	// 20 trailing days at 1000 and the event day at 4000
	for i := 1; i <= 20; i++ {
		fr.add("AAPL", drepo.TF1d, bar(ev.AddDate(0, 0, -i), 100, 1000))
	}
	fr.add("AAPL", drepo.TF1d, bar(ev, 100, 4000))
	groups := []config.BenchmarkGroup{{Name: "market", Tickers: []string{"SPY"}}}

	calc := newCalc(fr, utcCal(t), groups)
	mkt := calc.MarketContext(context.Background(), "AAPL", ev)

	if mkt.RelativeVolume == nil || !closeTo(*mkt.RelativeVolume, 4.0) {
		t.Fatalf("relative volume = %v, want 4.0", mkt.RelativeVolume)
	}
	if mkt.VolumeSpike == nil || !*mkt.VolumeSpike {
		t.Fatalf("4x volume must flag a spike")
	}
	if !mkt.TradingHours {
		t.Fatalf("14:00 UTC weekday should be in session")
	}
}

func TestMarketContextRegime(t *testing.T) {
	ev := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	fr := &fakeResolver{}
	// +10% over the 30 day lookback: bull
	fr.add("SPY", drepo.TF1d, bar(ev.AddDate(0, 0, -30), 100, 0), bar(ev, 110, 0))
	groups := []config.BenchmarkGroup{{Name: "market", Tickers: []string{"SPY"}}}

	calc := newCalc(fr, utcCal(t), groups)
	mkt := calc.MarketContext(context.Background(), "AAPL", ev)
	if mkt.Regime != models.RegimeBull {
		t.Fatalf("regime = %s, want bull", mkt.Regime)
	}
}

func TestMarketContextUnknownRegimeWithoutHistory(t *testing.T) {
	ev := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	fr := &fakeResolver{}
	groups := []config.BenchmarkGroup{{Name: "market", Tickers: []string{"SPY"}}}

	calc := newCalc(fr, utcCal(t), groups)
	mkt := calc.MarketContext(context.Background(), "AAPL", ev)
	if mkt.Regime != models.RegimeUnknown {
		t.Fatalf("regime without history = %s, want unknown", mkt.Regime)
	}
	if mkt.RelativeVolume != nil || mkt.VolumeSpike != nil {
		t.Fatalf("volume context without history must be nil")
	}
}

func closeTo(got, want float64) bool {
	d := got - want
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
