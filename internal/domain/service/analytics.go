package service

import (
	"context"
	"time"

	"AlphaForge/internal/domain/models"
	drepo "AlphaForge/internal/domain/repository"
)

// PriceResolver resolves the bar closest to a target timestamp within a
// bounded tolerance. The second return is false when no bar qualifies.
type PriceResolver interface {
	Resolve(ctx context.Context, ticker string, target time.Time, tolerance time.Duration, tf drepo.Timeframe) (models.PricePoint, bool)
	Warm(ctx context.Context, ticker string, from, to time.Time, tf drepo.Timeframe) (int, error)
	Range(ticker string, from, to time.Time, tf drepo.Timeframe) []models.Bar
}

// WindowScheduler maps the static window catalog onto a concrete event
// timestamp.
type WindowScheduler interface {
	WindowsFor(eventTime time.Time) []models.WindowTarget
	Specs() []models.TimeWindowSpec
	Version() string
}

// RegimeClassifier labels the trailing benchmark trend. A nil trailing
// return yields RegimeUnknown.
type RegimeClassifier interface {
	Classify(trailingReturnPct *float64) string
}
