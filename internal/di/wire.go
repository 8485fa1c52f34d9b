//go:build wireinject
// +build wireinject

package di

import (
	"AlphaForge/pkg/config"
	"AlphaForge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideResultsCache,

		// Repositories
		ProvidePriceReader,
		ProvideFeatureSink,
		ProvideCheckpoint,

		// Domain services
		ProvideCalendar,
		ProvideScheduler,
		ProvideResolver,
		ProvideRegimeClassifier,
		ProvideCalculator,
		ProvideSchema,
		ProvideAggregator,

		// Use cases
		ProvideEventProcessor,
		ProvideBatchRunner,

		// HTTP surface
		ProvideStatusHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
