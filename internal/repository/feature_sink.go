package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"AlphaForge/internal/domain/models"
	drepo "AlphaForge/internal/domain/repository"
	pkgch "AlphaForge/pkg/clickhouse"
	pkgkafka "AlphaForge/pkg/kafka"
)

// CHFeatureSink writes export rows into a ClickHouse table. The ordered
// column payload travels as JSON so the table schema survives catalog
// version bumps; identity and quality fields are first-class columns.
type CHFeatureSink struct {
	db       *sql.DB
	client   *pkgch.Client
	database string
	table    string
}

// NewCHFeatureSink creates the ClickHouse feature sink.
func NewCHFeatureSink(ch *pkgch.Client, database, table string) *CHFeatureSink {
	return &CHFeatureSink{db: ch.DB(), client: ch, database: database, table: table}
}

func (s *CHFeatureSink) qualified() string {
	return fmt.Sprintf("%s.%s", s.database, s.table)
}

// Init ensures the export table exists (idempotent). ReplacingMergeTree
// keyed by event id keeps re-runs idempotent at the storage level too.
func (s *CHFeatureSink) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            event_id String,
            ticker String,
            event_ts DateTime,
            completeness Float64,
            schema_version String,
            payload String,
            inserted_at DateTime DEFAULT now()
        ) ENGINE=ReplacingMergeTree(inserted_at) ORDER BY (event_id)`, s.qualified()),
	}
	return s.client.InitSchema(ctx, stmts)
}

// WriteRow inserts one export row.
func (s *CHFeatureSink) WriteRow(ctx context.Context, row *models.FeatureRow) error {
	payload, err := row.EncodeJSON()
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (event_id, ticker, event_ts, completeness, schema_version, payload) VALUES (?, ?, ?, ?, ?, ?)", s.qualified())
	_, err = s.db.ExecContext(ctx, q,
		row.EventID,
		row.Ticker,
		row.Timestamp.UTC(),
		row.Completeness,
		row.SchemaVersion,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert feature row: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by the app.
func (s *CHFeatureSink) Close() error { return nil }

var _ drepo.FeatureSink = (*CHFeatureSink)(nil)

// KafkaFeatureSink publishes export rows to a topic, keyed by event id so
// re-runs of the same event land in the same partition.
type KafkaFeatureSink struct {
	producer *pkgkafka.Producer
	topic    string
	timeout  time.Duration
}

// NewKafkaFeatureSink creates the Kafka feature sink.
func NewKafkaFeatureSink(producer *pkgkafka.Producer, topic string, timeout time.Duration) *KafkaFeatureSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KafkaFeatureSink{producer: producer, topic: topic, timeout: timeout}
}

// Init is a no-op; topics are provisioned out of band.
func (s *KafkaFeatureSink) Init(ctx context.Context) error { return nil }

// WriteRow publishes one export row.
func (s *KafkaFeatureSink) WriteRow(ctx context.Context, row *models.FeatureRow) error {
	payload, err := row.EncodeJSON()
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.producer.Publish(wctx, s.topic, []byte(row.EventID), payload); err != nil {
		return fmt.Errorf("publish feature row: %w", err)
	}
	return nil
}

// Close closes the underlying producer.
func (s *KafkaFeatureSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

var _ drepo.FeatureSink = (*KafkaFeatureSink)(nil)
