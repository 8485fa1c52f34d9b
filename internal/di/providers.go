package di

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"AlphaForge/internal/domain/repository"
	domsvc "AlphaForge/internal/domain/service"
	"AlphaForge/internal/handler/api"
	internalrepo "AlphaForge/internal/repository"
	"AlphaForge/internal/services/alpha"
	"AlphaForge/internal/services/features"
	"AlphaForge/internal/services/pricing"
	"AlphaForge/internal/services/sessions"
	"AlphaForge/internal/services/windows"
	"AlphaForge/internal/usecase"
	"AlphaForge/pkg/cache"
	pkgch "AlphaForge/pkg/clickhouse"
	"AlphaForge/pkg/config"
	xhttp "AlphaForge/pkg/http"
	pkgkafka "AlphaForge/pkg/kafka"
	applogger "AlphaForge/pkg/logger"
	"AlphaForge/pkg/metrics"
	"AlphaForge/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRedisCache creates the shared Redis client and cache.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}
	return cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
}

// ProvideResultsCache layers an in-process cache over Redis for the
// per-event results served by the status API.
func ProvideResultsCache(rc *cache.RedisCache) cache.Service {
	return cache.NewLayeredCache(rc)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePriceReader creates the ClickHouse-backed bar reader.
func ProvidePriceReader(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.PriceReader {
	r := internalrepo.NewCHPriceReader(ch, cfg.ClickHouse.Database, cfg.ClickHouse.BarsTablePrefix)
	r.SetLogger(l)
	return r
}

// ProvideFeatureSink selects the export backend.
func ProvideFeatureSink(cfg *config.Config, ch *pkgch.Client) (repository.FeatureSink, error) {
	switch cfg.Export.Backend {
	case "kafka":
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithCompression(cfg.Kafka.Compression),
			pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
			pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
			pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
			pkgkafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		return internalrepo.NewKafkaFeatureSink(producer, cfg.Kafka.Topic, cfg.Kafka.WriteTimeout), nil
	default:
		return internalrepo.NewCHFeatureSink(ch, cfg.ClickHouse.Database, cfg.ClickHouse.FeatureTable), nil
	}
}

// ProvideCheckpoint creates the Redis-backed resume store.
func ProvideCheckpoint(rc *cache.RedisCache) repository.Checkpoint {
	return internalrepo.NewRedisCheckpoint(rc.Client())
}

// ProvideCalendar builds the trading session calendar.
func ProvideCalendar(cfg *config.Config) (*sessions.Calendar, error) {
	return sessions.New(cfg.Calendar.MIC, cfg.Calendar.Timezone, cfg.Calendar.Open, cfg.Calendar.Close)
}

// ProvideScheduler compiles the window catalog.
func ProvideScheduler(cfg *config.Config, cal *sessions.Calendar) (*windows.Scheduler, error) {
	tol := time.Duration(cfg.Pipeline.DefaultToleranceMinutes) * time.Minute
	return windows.FromConfig(cfg.Windows.Version, cfg.Windows.Catalog, tol, cal)
}

// ProvideResolver creates the nearest-bar price resolver.
func ProvideResolver(reader repository.PriceReader, m repository.Metrics, cfg *config.Config, l *applogger.Logger) domsvc.PriceResolver {
	return pricing.NewResolver(reader, m,
		pricing.WithRetry(cfg.Pipeline.RetryLimit, cfg.Pipeline.RetryBackoff),
		pricing.WithStoreTimeout(cfg.Pipeline.StoreTimeout),
		pricing.WithLogger(l),
	)
}

// ProvideRegimeClassifier builds the threshold classifier.
func ProvideRegimeClassifier(cfg *config.Config) domsvc.RegimeClassifier {
	return alpha.NewRegimeClassifier(cfg.Pipeline.RegimeBullThresholdPct, cfg.Pipeline.RegimeBearThresholdPct)
}

// ProvideCalculator wires the alpha calculator.
func ProvideCalculator(
	resolver domsvc.PriceResolver,
	cal *sessions.Calendar,
	classifier domsvc.RegimeClassifier,
	cfg *config.Config,
) *alpha.Calculator {
	return alpha.NewCalculator(
		resolver,
		cal,
		classifier,
		cfg.Benchmarks.Groups,
		cfg.Benchmarks.Primary,
		cfg.Pipeline.VolumeSpikeThreshold,
		cfg.Pipeline.TrailingVolumeDays,
		cfg.Pipeline.RegimeLookbackDays,
	)
}

// ProvideSchema derives the export column layout.
func ProvideSchema(scheduler *windows.Scheduler, cfg *config.Config) *features.Schema {
	names := make([]string, 0, len(cfg.Benchmarks.Groups))
	for _, g := range cfg.Benchmarks.Groups {
		names = append(names, g.Name)
	}
	return features.NewSchema(scheduler.Specs(), names, scheduler.Version())
}

// ProvideAggregator creates the factor aggregator.
func ProvideAggregator(schema *features.Schema, cfg *config.Config) *features.Aggregator {
	return features.NewAggregator(schema, cfg.Aggregation.NumericDefaults)
}

// ProvideEventProcessor wires the per-event pipeline.
func ProvideEventProcessor(
	resolver domsvc.PriceResolver,
	scheduler *windows.Scheduler,
	calc *alpha.Calculator,
	agg *features.Aggregator,
	sink repository.FeatureSink,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.EventProcessor {
	return usecase.NewEventProcessor(
		resolver, scheduler, calc, agg, sink, m, l,
		cfg.Pipeline.TrailingVolumeDays,
		cfg.Pipeline.RegimeLookbackDays,
	)
}

// ProvideBatchRunner creates the worker-pool runner.
func ProvideBatchRunner(
	proc *usecase.EventProcessor,
	checkpoint repository.Checkpoint,
	results cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.BatchRunner {
	return usecase.NewBatchRunner(proc, checkpoint, results, m, l, cfg.Pipeline.Workers)
}

// ProvideStatusHandler creates the HTTP API handler.
func ProvideStatusHandler(
	reader repository.PriceReader,
	runner *usecase.BatchRunner,
	results cache.Service,
	scheduler *windows.Scheduler,
	schema *features.Schema,
	l *applogger.Logger,
) xhttp.Handler {
	return api.NewStatusHandler(reader, runner, results, scheduler, schema, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	chClient *pkgch.Client,
	rc *cache.RedisCache,
	sink repository.FeatureSink,
	m repository.Metrics,
	proc *usecase.EventProcessor,
	runner *usecase.BatchRunner,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, l, chClient, rc, sink, m, proc, runner, handler)
}
