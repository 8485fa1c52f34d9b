package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"AlphaForge/internal/domain/models"
	drepo "AlphaForge/internal/domain/repository"
	"AlphaForge/internal/services/alpha"
	"AlphaForge/internal/services/features"
	"AlphaForge/internal/services/sessions"
	"AlphaForge/internal/services/windows"
	"AlphaForge/pkg/config"
)

// stubResolver serves pre-seeded bars per (ticker, timeframe).
type stubResolver struct {
	bars map[string][]models.Bar
}

func (s *stubResolver) key(ticker string, tf drepo.Timeframe) string {
	return ticker + "/" + string(tf)
}

func (s *stubResolver) add(ticker string, tf drepo.Timeframe, bars ...models.Bar) {
	if s.bars == nil {
		s.bars = make(map[string][]models.Bar)
	}
	k := s.key(ticker, tf)
	s.bars[k] = append(s.bars[k], bars...)
}

func (s *stubResolver) Resolve(ctx context.Context, ticker string, target time.Time, tolerance time.Duration, tf drepo.Timeframe) (models.PricePoint, bool) {
	best := -1
	var bestDist time.Duration
	bars := s.bars[s.key(ticker, tf)]
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

func (s *stubResolver) Warm(ctx context.Context, ticker string, from, to time.Time, tf drepo.Timeframe) (int, error) {
	n := 0
	for _, b := range s.bars[s.key(ticker, tf)] {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			n++
		}
	}
	return n, nil
}

func (s *stubResolver) Range(ticker string, from, to time.Time, tf drepo.Timeframe) []models.Bar {
	var out []models.Bar
	for _, b := range s.bars[s.key(ticker, tf)] {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			out = append(out, b)
		}
	}
	return out
}

type stubSink struct {
	rows []*models.FeatureRow
	err  error
}

func (s *stubSink) Init(ctx context.Context) error { return nil }
func (s *stubSink) Close() error                   { return nil }
func (s *stubSink) WriteRow(ctx context.Context, row *models.FeatureRow) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, row)
	return nil
}

func barAt(ts time.Time, close float64) models.Bar {
	return models.Bar{Timestamp: ts, Open: close, High: close, Low: close, Close: close, Volume: 1000}
}

var testEventTime = time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)

// newProcessor wires a processor over one post_1h window and a single
// benchmark constituent.
func newProcessor(t *testing.T, sr *stubResolver, sink drepo.FeatureSink) *EventProcessor {
	t.Helper()
	cal, err := sessions.New("zzzz", "UTC", "09:30", "16:00")
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	sched, err := windows.FromConfig("cat1", []config.WindowSpec{
		{Name: "post_1h", OffsetMinutes: 60},
	}, 5*time.Minute, cal)
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	groups := []config.BenchmarkGroup{{Name: "market", Tickers: []string{"SPY"}}}
	calc := alpha.NewCalculator(sr, cal, alpha.NewRegimeClassifier(5, -5), groups, "market", 3.0, 20, 30)
	schema := features.NewSchema(sched.Specs(), []string{"market"}, "cat1")
	agg := features.NewAggregator(schema, nil)
	return NewEventProcessor(sr, sched, calc, agg, sink, nil, nil, 20, 30)
}

func testEvent(id string) *models.Event {
	return &models.Event{
		ID:        id,
		Ticker:    "AAPL",
		Timestamp: testEventTime,
		Factors:   []models.FactorRecord{{CausalStep: 1, EventType: "earnings_beat"}},
	}
}

func TestProcessCompleteEvent(t *testing.T) {
	sr := &stubResolver{}
	end := testEventTime.Add(time.Hour)
	sr.add("AAPL", drepo.TF1m, barAt(testEventTime, 100), barAt(end, 103))
	sr.add("SPY", drepo.TF1m, barAt(testEventTime, 500), barAt(end, 510))
	sink := &stubSink{}

	res := newProcessor(t, sr, sink).Process(context.Background(), testEvent("ev-1"))
	if res.Status != models.StatusComplete {
		t.Fatalf("status = %s reason=%s", res.Status, res.Reason)
	}
	if res.Completeness != 1 {
		t.Fatalf("completeness = %v", res.Completeness)
	}
	if len(sink.rows) != 1 {
		t.Fatalf("want 1 exported row, got %d", len(sink.rows))
	}
	row := sink.rows[0]
	if row.EventID != "ev-1" || row.SchemaVersion != "v1+windows:cat1" {
		t.Fatalf("row identity = %s/%s", row.EventID, row.SchemaVersion)
	}
}

func TestProcessMissingWindowIsPartial(t *testing.T) {
	sr := &stubResolver{}
	// start resolves, the window end has no bar within tolerance
	sr.add("AAPL", drepo.TF1m, barAt(testEventTime, 100))
	sr.add("SPY", drepo.TF1m, barAt(testEventTime, 500), barAt(testEventTime.Add(time.Hour), 510))
	sink := &stubSink{}

	res := newProcessor(t, sr, sink).Process(context.Background(), testEvent("ev-2"))
	if res.Status != models.StatusPartial {
		t.Fatalf("status = %s", res.Status)
	}
	if res.Reason != models.ReasonNoBarsInTolerance {
		t.Fatalf("reason = %s", res.Reason)
	}
	if res.Completeness != 0.75 {
		t.Fatalf("completeness = %v, want 0.75", res.Completeness)
	}
	// partial events still export their row
	if len(sink.rows) != 1 {
		t.Fatalf("partial event must still export, got %d rows", len(sink.rows))
	}
}

func TestProcessInvalidIdentityFails(t *testing.T) {
	sink := &stubSink{}
	p := newProcessor(t, &stubResolver{}, sink)

	res := p.Process(context.Background(), &models.Event{Ticker: "AAPL", Timestamp: testEventTime})
	if res.Status != models.StatusFailed || res.Reason != "invalid_identity" {
		t.Fatalf("status=%s reason=%s", res.Status, res.Reason)
	}
	var mce *models.MissingEventContextError
	if !errors.As(res.Err, &mce) {
		t.Fatalf("err = %v", res.Err)
	}
	if len(sink.rows) != 0 {
		t.Fatalf("failed event must not export")
	}
}

func TestProcessUnresolvableTickerFails(t *testing.T) {
	sr := &stubResolver{}
	// benchmark data exists, the instrument has none on any timeframe
	sr.add("SPY", drepo.TF1m, barAt(testEventTime, 500))
	sink := &stubSink{}

	res := newProcessor(t, sr, sink).Process(context.Background(), testEvent("ev-3"))
	if res.Status != models.StatusFailed || res.Reason != "unresolvable_ticker" {
		t.Fatalf("status=%s reason=%s", res.Status, res.Reason)
	}
	if len(sink.rows) != 0 {
		t.Fatalf("failed event must not export")
	}
}

func TestProcessExportFailure(t *testing.T) {
	sr := &stubResolver{}
	end := testEventTime.Add(time.Hour)
	sr.add("AAPL", drepo.TF1m, barAt(testEventTime, 100), barAt(end, 103))
	sr.add("SPY", drepo.TF1m, barAt(testEventTime, 500), barAt(end, 510))
	sink := &stubSink{err: errors.New("broker down")}

	res := newProcessor(t, sr, sink).Process(context.Background(), testEvent("ev-4"))
	if res.Status != models.StatusFailed || res.Reason != "export_failed" {
		t.Fatalf("status=%s reason=%s", res.Status, res.Reason)
	}
	if res.Err == nil {
		t.Fatalf("export failure must carry the sink error")
	}
}

func TestProcessDailyOnlyInstrument(t *testing.T) {
	sr := &stubResolver{}
	// no intraday coverage at all, daily bars only
	sr.add("AAPL", drepo.TF1d, barAt(testEventTime, 100))
	sink := &stubSink{}

	res := newProcessor(t, sr, sink).Process(context.Background(), testEvent("ev-5"))
	if res.Status == models.StatusFailed {
		t.Fatalf("daily-only coverage must not fail the event, got %s/%s", res.Status, res.Reason)
	}
}
