package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"AlphaForge/internal/domain/models"
	drepo "AlphaForge/internal/domain/repository"
	pkgch "AlphaForge/pkg/clickhouse"
	applogger "AlphaForge/pkg/logger"
)

// CHPriceReader implements PriceReader backed by ClickHouse bar tables.
// The store is append-only and read-only here; queries over a closed
// range are snapshot-consistent.
type CHPriceReader struct {
	db          *sql.DB
	database    string
	tablePrefix string
	l           *applogger.Logger
}

// NewCHPriceReader creates a ClickHouse price reader.
func NewCHPriceReader(ch *pkgch.Client, database, tablePrefix string) *CHPriceReader {
	return &CHPriceReader{db: ch.DB(), database: database, tablePrefix: tablePrefix}
}

// SetLogger injects a structured logger.
func (r *CHPriceReader) SetLogger(l *applogger.Logger) { r.l = l }

// RangeQuery returns bars for (ticker, tf) inside [from, to], ascending.
func (r *CHPriceReader) RangeQuery(ctx context.Context, ticker string, from, to time.Time, tf drepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	table, err := r.tableForTF(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT ticker, ts, open, high, low, close, volume, vwap, source
        FROM %s
        WHERE ticker = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := r.db.QueryContext(ctx, q, ticker, from, to)
	if err != nil {
		if r.l != nil {
			r.l.Error("clickhouse range_query error",
				applogger.String("table", table),
				applogger.String("ticker", ticker),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("range query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		var vwap sql.NullFloat64
		if err := rows.Scan(&b.Ticker, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &vwap, &b.Source); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		if vwap.Valid {
			v := vwap.Float64
			b.VWAP = &v
		}
		b.Timeframe = string(tf)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if r.l != nil {
		r.l.Debug("clickhouse range_query ok",
			applogger.String("table", table),
			applogger.String("ticker", ticker),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// Health pings the store.
func (r *CHPriceReader) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *CHPriceReader) tableForTF(tf drepo.Timeframe) (string, error) {
	switch tf {
	case drepo.TF1m, drepo.TF5m, drepo.TF1d:
		return fmt.Sprintf("%s.%s_%s", r.database, r.tablePrefix, tf), nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
}
