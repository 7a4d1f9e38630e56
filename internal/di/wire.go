//go:build wireinject
// +build wireinject

package di

import (
	"CryptoSouq/pkg/config"
	"CryptoSouq/pkg/server"

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
		ProvidePostgresClient,
		ProvideClickHouseClient,
		ProvideRedisClient,

		// Storage
		ProvideFactStore,
		ProvideSearchIndex,
		ProvideRetryQueue,
		ProvidePriceCache,

		// Upstream sources
		ProvideRateLimiter,
		ProvidePriceSource,
		ProvideStreamDialer,
		ProvideNewsSource,
		ProvideScorer,

		// Use cases
		ProvideIngestor,
		ProvideFactSink,
		ProvideKafkaConsumer,
		ProvideFactsHandler,
		ProvideQueryRouter,
		ProvideForecastEngine,
		ProvideHub,
		ProvidePricePoller,
		ProvideNewsPoller,

		// Transport
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
