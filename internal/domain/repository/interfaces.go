package repository

import (
	"context"
	"time"

	"AlphaForge/internal/domain/models"
)

// PriceReader is the external price series store: append-only per-ticker
// OHLCV history, read-only to the pipeline. Bars come back ordered by
// timestamp ascending.
type PriceReader interface {
	RangeQuery(ctx context.Context, ticker string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
	Health(ctx context.Context) error
}

// EventSource yields events with attached factor payloads. Both channels
// close when the source is exhausted or the context is cancelled.
type EventSource interface {
	Events(ctx context.Context) (<-chan *models.Event, <-chan error)
	Close() error
}

// FeatureSink receives one export row per event. Column order inside a
// row is stable across runs.
type FeatureSink interface {
	Init(ctx context.Context) error
	WriteRow(ctx context.Context, row *models.FeatureRow) error
	Close() error
}

// Checkpoint records completed event ids per batch so a restarted run
// skips finished work instead of recomputing it.
type Checkpoint interface {
	IsDone(ctx context.Context, batchID, eventID string) (bool, error)
	MarkDone(ctx context.Context, batchID, eventID string) error
}

// Metrics abstracts the metrics recorder.
type Metrics interface {
	RecordResolution(outcome string)
	RecordEventProcessed(status string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordCompleteness(v float64)
}
