package alpha

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"AlphaForge/internal/domain/models"
	drepo "AlphaForge/internal/domain/repository"
	domsvc "AlphaForge/internal/domain/service"
	"AlphaForge/internal/services/quality"
	"AlphaForge/internal/services/sessions"
	"AlphaForge/pkg/config"
)

// regimeTolerance is the resolution tolerance for the trailing-regime
// endpoints on the daily series; wide enough to jump holidays and long
// weekends.
const regimeTolerance = 96 * time.Hour

// Calculator derives per-window relative-performance metrics. Instrument
// and benchmark endpoint resolutions for one window fan out in parallel
// and join before alpha is derived. Every metric that cannot be measured
// stays nil; nothing is zero-filled.
type Calculator struct {
	resolver   domsvc.PriceResolver
	cal        *sessions.Calendar
	classifier domsvc.RegimeClassifier

	groups  []config.BenchmarkGroup
	primary string

	spikeThreshold float64
	trailingDays   int
	regimeLookback int

	intradayTF drepo.Timeframe
	dailyTF    drepo.Timeframe
}

// NewCalculator wires a calculator from its collaborators.
func NewCalculator(
	resolver domsvc.PriceResolver,
	cal *sessions.Calendar,
	classifier domsvc.RegimeClassifier,
	groups []config.BenchmarkGroup,
	primary string,
	spikeThreshold float64,
	trailingDays int,
	regimeLookback int,
) *Calculator {
	return &Calculator{
		resolver:       resolver,
		cal:            cal,
		classifier:     classifier,
		groups:         groups,
		primary:        primary,
		spikeThreshold: spikeThreshold,
		trailingDays:   trailingDays,
		regimeLookback: regimeLookback,
		intradayTF:     drepo.DefaultTimeframe(),
		dailyTF:        drepo.TF1d,
	}
}

// Groups returns the configured benchmark groups in order.
func (c *Calculator) Groups() []config.BenchmarkGroup { return c.groups }

type endpoint struct {
	start   models.PricePoint
	end     models.PricePoint
	okStart bool
	okEnd   bool
}

// ComputeWindow resolves window endpoints for the instrument and every
// benchmark constituent concurrently, then derives returns, alpha and
// volatility. Market context (volume, session, regime) is computed once
// per event and stamped here.
func (c *Calculator) ComputeWindow(
	ctx context.Context,
	ticker string,
	target models.WindowTarget,
	tolerance time.Duration,
	mkt models.EventMarketContext,
	tr *quality.Tracker,
) models.PerformanceWindow {
	inst := &endpoint{}
	cons := make(map[string][]*endpoint, len(c.groups))
	for _, grp := range c.groups {
		eps := make([]*endpoint, len(grp.Tickers))
		for i := range eps {
			eps[i] = &endpoint{}
		}
		cons[grp.Name] = eps
	}

	// fan-out: each goroutine owns one endpoint slot; Wait is the join
	// barrier before any metric is derived
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		inst.start, inst.okStart = c.resolver.Resolve(gctx, ticker, target.Start, tolerance, c.intradayTF)
		tr.Record(target.Name, inst.okStart)
		return nil
	})
	g.Go(func() error {
		inst.end, inst.okEnd = c.resolver.Resolve(gctx, ticker, target.End, tolerance, c.intradayTF)
		tr.Record(target.Name, inst.okEnd)
		return nil
	})
	for _, grp := range c.groups {
		eps := cons[grp.Name]
		for i, bt := range grp.Tickers {
			ep, bt := eps[i], bt
			g.Go(func() error {
				ep.start, ep.okStart = c.resolver.Resolve(gctx, bt, target.Start, tolerance, c.intradayTF)
				tr.Record(target.Name, ep.okStart)
				return nil
			})
			g.Go(func() error {
				ep.end, ep.okEnd = c.resolver.Resolve(gctx, bt, target.End, tolerance, c.intradayTF)
				tr.Record(target.Name, ep.okEnd)
				return nil
			})
		}
	}
	_ = g.Wait()

	w := models.PerformanceWindow{
		Name:               target.Name,
		BenchmarkReturnPct: make(map[string]*float64, len(c.groups)),
		Alpha:              make(map[string]*float64, len(c.groups)),
		RelativeVolume:     mkt.RelativeVolume,
		VolumeSpike:        mkt.VolumeSpike,
		TradingHours:       mkt.TradingHours,
		Regime:             mkt.Regime,
	}

	w.InstrumentReturnPct = endpointReturn(inst)

	for _, grp := range c.groups {
		rets := make([]*float64, 0, len(grp.Tickers))
		for _, ep := range cons[grp.Name] {
			rets = append(rets, endpointReturn(ep))
		}
		groupRet := meanNonNull(rets)
		w.BenchmarkReturnPct[grp.Name] = groupRet
		// alpha is defined only when both operands are
		if w.InstrumentReturnPct != nil && groupRet != nil {
			w.Alpha[grp.Name] = fptr(*w.InstrumentReturnPct - *groupRet)
		} else {
			w.Alpha[grp.Name] = nil
		}
	}

	w.Volatility = c.windowVolatility(ticker, target)
	w.RelativeVolatility = c.relativeVolatility(w.Volatility, target)

	return w
}

// MarketContext derives the window-independent metrics of one event:
// trading-hours flag, relative volume against the trailing mean, and the
// regime from the trailing benchmark return.
func (c *Calculator) MarketContext(ctx context.Context, ticker string, eventTime time.Time) models.EventMarketContext {
	mkt := models.EventMarketContext{
		TradingHours: c.cal.InSession(eventTime),
	}

	mkt.RelativeVolume = c.relativeVolume(ticker, eventTime)
	if mkt.RelativeVolume != nil {
		spike := *mkt.RelativeVolume > c.spikeThreshold
		mkt.VolumeSpike = &spike
	}

	mkt.Regime = c.classifier.Classify(c.trailingBenchmarkReturn(ctx, eventTime))
	return mkt
}

// relativeVolume divides the instrument's event-day volume by the mean
// daily volume over the trailing trading days. Nil when either side
// cannot be measured.
func (c *Calculator) relativeVolume(ticker string, eventTime time.Time) *float64 {
	loc := c.cal.Location()
	et := eventTime.In(loc)
	dayStart := time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond)

	// look back twice the trailing span to ride out holidays
	from := dayStart.AddDate(0, 0, -(c.trailingDays*2 + 10))
	daily := c.resolver.Range(ticker, from, dayEnd, c.dailyTF)
	if len(daily) == 0 {
		return nil
	}

	var dayVol *float64
	trailing := make([]float64, 0, c.trailingDays)
	for _, b := range daily {
		bt := b.Timestamp.In(loc)
		if bt.Year() == et.Year() && bt.YearDay() == et.YearDay() {
			v := b.Volume
			dayVol = &v
			continue
		}
		if b.Timestamp.Before(dayStart) {
			trailing = append(trailing, b.Volume)
		}
	}
	if dayVol == nil || len(trailing) == 0 {
		return nil
	}
	if len(trailing) > c.trailingDays {
		trailing = trailing[len(trailing)-c.trailingDays:]
	}
	sum := 0.0
	for _, v := range trailing {
		sum += v
	}
	mean := sum / float64(len(trailing))
	if mean == 0 {
		return nil
	}
	return fptr(*dayVol / mean)
}

// trailingBenchmarkReturn computes the primary group's return over the
// regime lookback, averaging non-null constituents.
func (c *Calculator) trailingBenchmarkReturn(ctx context.Context, eventTime time.Time) *float64 {
	var grp *config.BenchmarkGroup
	for i := range c.groups {
		if c.groups[i].Name == c.primary {
			grp = &c.groups[i]
			break
		}
	}
	if grp == nil {
		return nil
	}

	lookbackStart := eventTime.AddDate(0, 0, -c.regimeLookback)
	rets := make([]*float64, 0, len(grp.Tickers))
	for _, bt := range grp.Tickers {
		start, okS := c.resolver.Resolve(ctx, bt, lookbackStart, regimeTolerance, c.dailyTF)
		end, okE := c.resolver.Resolve(ctx, bt, eventTime, regimeTolerance, c.dailyTF)
		if !okS || !okE || start.Price == 0 {
			rets = append(rets, nil)
			continue
		}
		rets = append(rets, fptr((end.Price-start.Price)/start.Price*100))
	}
	return meanNonNull(rets)
}

// windowVolatility is the population standard deviation of consecutive
// intra-window bar returns, in percent. Nil with fewer than two bars.
func (c *Calculator) windowVolatility(ticker string, target models.WindowTarget) *float64 {
	bars := c.resolver.Range(ticker, target.Start, target.End, c.intradayTF)
	rets := consecutiveReturns(bars)
	if rets == nil {
		return nil
	}
	return fptr(popStdDev(rets))
}

// relativeVolatility divides instrument volatility by the primary
// benchmark group's volatility over the same window.
func (c *Calculator) relativeVolatility(instVol *float64, target models.WindowTarget) *float64 {
	if instVol == nil {
		return nil
	}
	var grp *config.BenchmarkGroup
	for i := range c.groups {
		if c.groups[i].Name == c.primary {
			grp = &c.groups[i]
			break
		}
	}
	if grp == nil {
		return nil
	}
	vols := make([]*float64, 0, len(grp.Tickers))
	for _, bt := range grp.Tickers {
		vols = append(vols, c.windowVolatility(bt, target))
	}
	benchVol := meanNonNull(vols)
	if benchVol == nil || *benchVol == 0 {
		return nil
	}
	return fptr(*instVol / *benchVol)
}

func endpointReturn(ep *endpoint) *float64 {
	if !ep.okStart || !ep.okEnd || ep.start.Price == 0 {
		return nil
	}
	return fptr((ep.end.Price - ep.start.Price) / ep.start.Price * 100)
}

// consecutiveReturns yields close-to-close percent returns; nil with
// fewer than two bars.
func consecutiveReturns(bars []models.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			continue
		}
		out = append(out, (bars[i].Close-prev)/prev*100)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// popStdDev is the population (not sample) standard deviation, so the
// result is deterministic for any n >= 1.
func popStdDev(xs []float64) float64 {
	n := float64(len(xs))
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= n
	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= n
	return math.Sqrt(variance)
}

// meanNonNull averages the non-nil entries; nil when none are present.
func meanNonNull(xs []*float64) *float64 {
	sum, n := 0.0, 0
	for _, x := range xs {
		if x != nil {
			sum += *x
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return fptr(sum / float64(n))
}

func fptr(v float64) *float64 { return &v }
