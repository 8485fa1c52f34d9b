package pricing

import (
	"context"
	"sort"
	"sync"
	"time"

	"AlphaForge/internal/domain/models"
	drepo "AlphaForge/internal/domain/repository"
	applogger "AlphaForge/pkg/logger"
)

// Resolver answers nearest-bar lookups against in-memory sorted series.
// Series are warmed once per event from the price reader; lookups are
// O(log n) binary searches. The resolver never extrapolates: outside
// tolerance the answer is absent.
type Resolver struct {
	reader  drepo.PriceReader
	metrics drepo.Metrics
	l       *applogger.Logger

	retryLimit   int
	retryBackoff time.Duration
	storeTimeout time.Duration

	mu     sync.RWMutex
	series map[seriesKey][]models.Bar
}

type seriesKey struct {
	ticker string
	tf     drepo.Timeframe
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRetry bounds the transient-store retry loop.
func WithRetry(limit int, backoff time.Duration) Option {
	return func(r *Resolver) {
		if limit >= 0 {
			r.retryLimit = limit
		}
		if backoff > 0 {
			r.retryBackoff = backoff
		}
	}
}

// WithStoreTimeout bounds each range query against the store.
func WithStoreTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.storeTimeout = d
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(r *Resolver) { r.l = l }
}

// NewResolver creates a resolver over the given price reader.
func NewResolver(reader drepo.PriceReader, metrics drepo.Metrics, opts ...Option) *Resolver {
	r := &Resolver{
		reader:       reader,
		metrics:      metrics,
		retryLimit:   3,
		retryBackoff: 500 * time.Millisecond,
		storeTimeout: 15 * time.Second,
		series:       make(map[seriesKey][]models.Bar),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Warm loads bars for (ticker, tf) over [from, to] into the sorted index.
// Transient store failures are retried with bounded backoff; after the
// last attempt the error is returned and the caller demotes the series to
// missing price data. Returns the number of bars loaded.
func (r *Resolver) Warm(ctx context.Context, ticker string, from, to time.Time, tf drepo.Timeframe) (int, error) {
	var bars []models.Bar
	var err error
	for attempt := 0; ; attempt++ {
		qctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
		bars, err = r.reader.RangeQuery(qctx, ticker, from, to, tf)
		cancel()
		if err == nil {
			break
		}
		if r.metrics != nil {
			r.metrics.RecordError("price_range_query")
		}
		if attempt >= r.retryLimit || ctx.Err() != nil {
			if r.l != nil {
				r.l.Warn("price series warm failed",
					applogger.String("ticker", ticker),
					applogger.String("tf", string(tf)),
					applogger.Int("attempts", attempt+1),
					applogger.Error(err),
				)
			}
			return 0, &models.TransientStoreError{Op: "range_query", Err: err}
		}
		select {
		case <-ctx.Done():
			return 0, &models.TransientStoreError{Op: "range_query", Err: ctx.Err()}
		case <-time.After(r.retryBackoff * time.Duration(attempt+1)):
		}
	}

	// Nearest-bar lookups require ascending order; the store usually
	// returns it sorted but the binary search must not assume so.
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	key := seriesKey{ticker: ticker, tf: tf}
	r.mu.Lock()
	existing := r.series[key]
	r.series[key] = mergeSeries(existing, bars)
	n := len(r.series[key])
	r.mu.Unlock()
	return n, nil
}

// Resolve finds the bar minimizing |timestamp - target| within tolerance.
// Equal distances resolve to the earlier timestamp. Confidence decays
// linearly from 1 at zero distance to 0 at the tolerance boundary.
func (r *Resolver) Resolve(ctx context.Context, ticker string, target time.Time, tolerance time.Duration, tf drepo.Timeframe) (models.PricePoint, bool) {
	if tolerance < 0 {
		return models.PricePoint{}, false
	}

	r.mu.RLock()
	bars := r.series[seriesKey{ticker: ticker, tf: tf}]
	r.mu.RUnlock()

	if len(bars) == 0 {
		r.record("absent")
		return models.PricePoint{}, false
	}

	// First bar at or after target; candidates are it and its predecessor.
	idx := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Timestamp.Before(target)
	})

	best := -1
	var bestDist time.Duration
	if idx > 0 {
		best = idx - 1
		bestDist = target.Sub(bars[idx-1].Timestamp)
	}
	if idx < len(bars) {
		d := bars[idx].Timestamp.Sub(target)
		// strict improvement only: on a tie the earlier bar wins
		if best == -1 || d < bestDist {
			best = idx
			bestDist = d
		}
	}

	if best == -1 || bestDist > tolerance {
		r.record("absent")
		return models.PricePoint{}, false
	}

	conf := 1.0
	if tolerance > 0 {
		conf = 1 - float64(bestDist)/float64(tolerance)
		if conf < 0 {
			conf = 0
		}
	}
	r.record("resolved")
	return models.PricePoint{
		Price:      bars[best].Close,
		Timestamp:  bars[best].Timestamp,
		Confidence: conf,
	}, true
}

// Range returns the warmed bars inside [from, to], inclusive, in
// timestamp order. Used for intra-window volatility and volume series.
func (r *Resolver) Range(ticker string, from, to time.Time, tf drepo.Timeframe) []models.Bar {
	r.mu.RLock()
	bars := r.series[seriesKey{ticker: ticker, tf: tf}]
	r.mu.RUnlock()

	lo := sort.Search(len(bars), func(i int) bool { return !bars[i].Timestamp.Before(from) })
	hi := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp.After(to) })
	if lo >= hi {
		return nil
	}
	out := make([]models.Bar, hi-lo)
	copy(out, bars[lo:hi])
	return out
}

func (r *Resolver) record(outcome string) {
	if r.metrics != nil {
		r.metrics.RecordResolution(outcome)
	}
}

// mergeSeries merges two ascending series, preferring b on duplicate
// timestamps. Bars themselves are immutable.
func mergeSeries(a, b []models.Bar) []models.Bar {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make([]models.Bar, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Timestamp.Before(b[j].Timestamp):
			out = append(out, a[i])
			i++
		case b[j].Timestamp.Before(a[i].Timestamp):
			out = append(out, b[j])
			j++
		default:
			out = append(out, b[j])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
