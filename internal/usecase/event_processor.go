package usecase

import (
	"context"
	"time"

	"AlphaForge/internal/domain/models"
	drepo "AlphaForge/internal/domain/repository"
	domsvc "AlphaForge/internal/domain/service"
	"AlphaForge/internal/services/alpha"
	"AlphaForge/internal/services/features"
	"AlphaForge/internal/services/quality"
	"AlphaForge/internal/services/windows"
	applogger "AlphaForge/pkg/logger"
)

// warmPad widens price-series warm ranges around the window span so
// nearest-bar lookups near the edges still have candidates.
const warmPad = 24 * time.Hour

// EventProcessor runs the per-event pipeline: warm price series, resolve
// windows, derive metrics, aggregate factors, score quality, export.
// Processing one event is internally sequential except the per-window
// endpoint fan-out; independent events share no mutable state beyond the
// resolver's read-mostly series cache.
type EventProcessor struct {
	resolver  domsvc.PriceResolver
	scheduler *windows.Scheduler
	calc      *alpha.Calculator
	agg       *features.Aggregator
	sink      drepo.FeatureSink
	metrics   drepo.Metrics
	l         *applogger.Logger

	intradayTF drepo.Timeframe
	dailyTF    drepo.Timeframe

	trailingVolumeDays int
	regimeLookbackDays int
}

// NewEventProcessor wires the per-event pipeline.
func NewEventProcessor(
	resolver domsvc.PriceResolver,
	scheduler *windows.Scheduler,
	calc *alpha.Calculator,
	agg *features.Aggregator,
	sink drepo.FeatureSink,
	metrics drepo.Metrics,
	l *applogger.Logger,
	trailingVolumeDays int,
	regimeLookbackDays int,
) *EventProcessor {
	return &EventProcessor{
		resolver:           resolver,
		scheduler:          scheduler,
		calc:               calc,
		agg:                agg,
		sink:               sink,
		metrics:            metrics,
		l:                  l,
		intradayTF:         drepo.DefaultTimeframe(),
		dailyTF:            drepo.TF1d,
		trailingVolumeDays: trailingVolumeDays,
		regimeLookbackDays: regimeLookbackDays,
	}
}

// Process runs one event through the pipeline. The result is always a
// value: per-point failures become nulls and a lowered completeness,
// never errors; only an unresolvable event identity fails the event.
func (p *EventProcessor) Process(ctx context.Context, ev *models.Event) *models.EventResult {
	start := time.Now()
	res := &models.EventResult{EventID: ev.ID, Ticker: ev.Ticker, Status: models.StatusPending}

	if ev.ID == "" || ev.Ticker == "" || ev.Timestamp.IsZero() {
		res.Status = models.StatusFailed
		res.Reason = "invalid_identity"
		res.Err = &models.MissingEventContextError{EventID: ev.ID, Reason: "missing id, ticker or timestamp"}
		p.recordResult(res, start)
		return res
	}

	res.Status = models.StatusResolving
	targets := p.scheduler.WindowsFor(ev.Timestamp)

	// The instrument's own series is the event's identity: if nothing can
	// be warmed the event fails; benchmark warm failures only lower
	// completeness later.
	if ok := p.warm(ctx, ev, targets); !ok {
		res.Status = models.StatusFailed
		res.Reason = "unresolvable_ticker"
		res.Err = &models.MissingEventContextError{EventID: ev.ID, Reason: "no price series for " + ev.Ticker}
		p.recordResult(res, start)
		return res
	}

	mkt := p.calc.MarketContext(ctx, ev.Ticker, ev.Timestamp)

	tracker := quality.NewTracker()
	perf := make([]models.PerformanceWindow, 0, len(targets))
	for _, target := range targets {
		w := p.calc.ComputeWindow(ctx, ev.Ticker, target, p.scheduler.Tolerance(target.Name), mkt, tracker)
		perf = append(perf, w)
	}

	fv := p.agg.Aggregate(ev)
	tv := p.agg.Targets(perf, mkt)
	dq := tracker.Score()
	res.Completeness = dq.Completeness

	row := p.agg.BuildRow(fv, tv, dq)
	if err := p.sink.WriteRow(ctx, row); err != nil {
		res.Status = models.StatusFailed
		res.Reason = "export_failed"
		res.Err = err
		p.recordResult(res, start)
		return res
	}

	if dq.Completeness == 1 {
		res.Status = models.StatusComplete
	} else {
		res.Status = models.StatusPartial
		res.Reason = models.ReasonNoBarsInTolerance
	}
	if p.l != nil && res.Status == models.StatusPartial {
		p.l.Debug("event partially complete",
			applogger.String("event_id", ev.ID),
			applogger.String("ticker", ev.Ticker),
			applogger.Any("missing_windows", dq.MissingWindows),
		)
	}
	p.recordResult(res, start)
	return res
}

// warm loads every price series the event's windows can touch. Returns
// false only when the instrument itself has no bars at all.
func (p *EventProcessor) warm(ctx context.Context, ev *models.Event, targets []models.WindowTarget) bool {
	from, to := ev.Timestamp, ev.Timestamp
	for _, t := range targets {
		if t.Start.Before(from) {
			from = t.Start
		}
		if t.End.After(to) {
			to = t.End
		}
	}
	from = from.Add(-warmPad)
	to = to.Add(warmPad)

	n, err := p.resolver.Warm(ctx, ev.Ticker, from, to, p.intradayTF)
	if err != nil || n == 0 {
		// retry once on the daily series before declaring the ticker dead;
		// some instruments only have end-of-day coverage
		nd, derr := p.resolver.Warm(ctx, ev.Ticker, from.AddDate(0, 0, -5), to, p.dailyTF)
		if derr != nil || nd == 0 {
			return false
		}
	}

	// daily history for relative volume and regime
	dailyFrom := ev.Timestamp.AddDate(0, 0, -(maxInt(p.trailingVolumeDays*2+10, p.regimeLookbackDays+10)))
	dailyTo := ev.Timestamp.Add(warmPad)
	if _, err := p.resolver.Warm(ctx, ev.Ticker, dailyFrom, dailyTo, p.dailyTF); err != nil {
		p.warnWarm(ev.Ticker, string(p.dailyTF), err)
	}

	for _, grp := range p.calc.Groups() {
		for _, bt := range grp.Tickers {
			if _, err := p.resolver.Warm(ctx, bt, from, to, p.intradayTF); err != nil {
				p.warnWarm(bt, string(p.intradayTF), err)
			}
			if _, err := p.resolver.Warm(ctx, bt, dailyFrom, dailyTo, p.dailyTF); err != nil {
				p.warnWarm(bt, string(p.dailyTF), err)
			}
		}
	}
	return true
}

func (p *EventProcessor) warnWarm(ticker, tf string, err error) {
	if p.metrics != nil {
		p.metrics.RecordError("warm_" + tf)
	}
	if p.l != nil {
		p.l.Warn("series warm failed, resolutions will miss",
			applogger.String("ticker", ticker),
			applogger.String("tf", tf),
			applogger.Error(err),
		)
	}
}

func (p *EventProcessor) recordResult(res *models.EventResult, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordEventProcessed(string(res.Status))
	p.metrics.RecordCompleteness(res.Completeness)
	p.metrics.RecordLatency("process_event", time.Since(start).Seconds())
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
