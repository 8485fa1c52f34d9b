package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"AlphaForge/internal/domain/models"
	drepo "AlphaForge/internal/domain/repository"
)

type fakeReader struct {
	bars     []models.Bar
	failures int
	calls    int
}

func (f *fakeReader) RangeQuery(ctx context.Context, ticker string, from, to time.Time, tf drepo.Timeframe) ([]models.Bar, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("store down")
	}
	out := make([]models.Bar, 0, len(f.bars))
	for _, b := range f.bars {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeReader) Health(ctx context.Context) error { return nil }

func mkBars(start time.Time, step time.Duration, closes ...float64) []models.Bar {
	out := make([]models.Bar, len(closes))
	for i, c := range closes {
		out[i] = models.Bar{
			Ticker:    "AAPL",
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

func warmed(t *testing.T, bars []models.Bar) *Resolver {
	t.Helper()
	r := NewResolver(&fakeReader{bars: bars}, nil)
	if len(bars) == 0 {
		return r
	}
	_, err := r.Warm(context.Background(), "AAPL",
		bars[0].Timestamp.Add(-time.Hour), bars[len(bars)-1].Timestamp.Add(time.Hour), drepo.TF1m)
	if err != nil {
		t.Fatalf("warm: %v", err)
	}
	return r
}

func TestResolveExactMatchFullConfidence(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	r := warmed(t, mkBars(base, time.Minute, 100, 101, 102))

	p, ok := r.Resolve(context.Background(), "AAPL", base.Add(time.Minute), 5*time.Minute, drepo.TF1m)
	if !ok {
		t.Fatalf("expected resolution")
	}
	if p.Price != 101 {
		t.Fatalf("unexpected price %v", p.Price)
	}
	if p.Confidence != 1 {
		t.Fatalf("exact match should have confidence 1, got %v", p.Confidence)
	}
}

func TestResolveConfidenceDecaysLinearly(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	r := warmed(t, mkBars(base, time.Hour, 100))

	// 2 minutes away with 4 minute tolerance: confidence 0.5
	p, ok := r.Resolve(context.Background(), "AAPL", base.Add(2*time.Minute), 4*time.Minute, drepo.TF1m)
	if !ok {
		t.Fatalf("expected resolution")
	}
	if p.Confidence != 0.5 {
		t.Fatalf("want confidence 0.5, got %v", p.Confidence)
	}

	// at the boundary confidence reaches 0 but the point still resolves
	p, ok = r.Resolve(context.Background(), "AAPL", base.Add(4*time.Minute), 4*time.Minute, drepo.TF1m)
	if !ok {
		t.Fatalf("boundary distance should still resolve")
	}
	if p.Confidence != 0 {
		t.Fatalf("want confidence 0 at boundary, got %v", p.Confidence)
	}
}

func TestResolveOutsideToleranceAbsent(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	r := warmed(t, mkBars(base, time.Hour, 100))

	if _, ok := r.Resolve(context.Background(), "AAPL", base.Add(10*time.Minute), 5*time.Minute, drepo.TF1m); ok {
		t.Fatalf("bar outside tolerance must not resolve")
	}
}

func TestResolveNeverExtrapolates(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	r := warmed(t, mkBars(base, time.Minute, 100, 101))

	// target far after the last bar
	if _, ok := r.Resolve(context.Background(), "AAPL", base.Add(3*time.Hour), 5*time.Minute, drepo.TF1m); ok {
		t.Fatalf("resolution past series end must be absent")
	}
}

func TestResolveTieBreaksEarlier(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	r := warmed(t, mkBars(base, 2*time.Minute, 100, 200))

	// target exactly between the two bars
	p, ok := r.Resolve(context.Background(), "AAPL", base.Add(time.Minute), 5*time.Minute, drepo.TF1m)
	if !ok {
		t.Fatalf("expected resolution")
	}
	if p.Price != 100 {
		t.Fatalf("equal distance should pick the earlier bar, got price %v", p.Price)
	}
}

func TestResolveEmptySeries(t *testing.T) {
	r := warmed(t, nil)
	if _, ok := r.Resolve(context.Background(), "AAPL", time.Now(), time.Minute, drepo.TF1m); ok {
		t.Fatalf("empty series must not resolve")
	}
}

func TestResolveZeroToleranceExactOnly(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	r := warmed(t, mkBars(base, time.Minute, 100))

	p, ok := r.Resolve(context.Background(), "AAPL", base, 0, drepo.TF1m)
	if !ok {
		t.Fatalf("exact timestamp must resolve at zero tolerance")
	}
	if p.Confidence != 1 {
		t.Fatalf("want confidence 1, got %v", p.Confidence)
	}
	if _, ok := r.Resolve(context.Background(), "AAPL", base.Add(time.Second), 0, drepo.TF1m); ok {
		t.Fatalf("non-exact timestamp must not resolve at zero tolerance")
	}
}

func TestWarmRetriesTransientFailures(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	fr := &fakeReader{bars: mkBars(base, time.Minute, 100), failures: 2}
	r := NewResolver(fr, nil, WithRetry(3, time.Millisecond))

	n, err := r.Warm(context.Background(), "AAPL", base.Add(-time.Hour), base.Add(time.Hour), drepo.TF1m)
	if err != nil {
		t.Fatalf("warm after transient failures: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 bar, got %d", n)
	}
	if fr.calls != 3 {
		t.Fatalf("want 3 attempts, got %d", fr.calls)
	}
}

func TestWarmExhaustedRetriesReturnsStoreError(t *testing.T) {
	fr := &fakeReader{failures: 10}
	r := NewResolver(fr, nil, WithRetry(2, time.Millisecond))

	_, err := r.Warm(context.Background(), "AAPL", time.Now().Add(-time.Hour), time.Now(), drepo.TF1m)
	var se *models.TransientStoreError
	if !errors.As(err, &se) {
		t.Fatalf("want TransientStoreError, got %v", err)
	}
}

func TestWarmMergePrefersNewerOnDuplicate(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	fr := &fakeReader{bars: mkBars(base, time.Minute, 100, 101)}
	r := NewResolver(fr, nil)
	if _, err := r.Warm(context.Background(), "AAPL", base.Add(-time.Hour), base.Add(time.Hour), drepo.TF1m); err != nil {
		t.Fatalf("warm: %v", err)
	}

	// second warm over the same span with a corrected close
	fr.bars = mkBars(base, time.Minute, 999, 101)
	if _, err := r.Warm(context.Background(), "AAPL", base.Add(-time.Hour), base.Add(time.Hour), drepo.TF1m); err != nil {
		t.Fatalf("rewarm: %v", err)
	}

	p, ok := r.Resolve(context.Background(), "AAPL", base, time.Minute, drepo.TF1m)
	if !ok || p.Price != 999 {
		t.Fatalf("rewarmed bar should win, got %v ok=%v", p.Price, ok)
	}
}

func TestRangeReturnsInclusiveWindow(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	r := warmed(t, mkBars(base, time.Minute, 100, 101, 102, 103))

	got := r.Range("AAPL", base.Add(time.Minute), base.Add(2*time.Minute), drepo.TF1m)
	if len(got) != 2 {
		t.Fatalf("want 2 bars, got %d", len(got))
	}
	if got[0].Close != 101 || got[1].Close != 102 {
		t.Fatalf("unexpected bars %v", got)
	}
}
