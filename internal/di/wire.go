//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"DWML/internal/domain/repository"
	"DWML/internal/usecase"
	"DWML/pkg/config"
	"DWML/pkg/metrics"
	"DWML/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	wire.Bind(new(repository.Metrics), new(*metrics.Recorder)),
	ProvideDatabase,
	ProvideSQLStore,
	ProvideRedisClient,
	ProvideCache,
	ProvideKafkaProducer,
	ProvidePublisher,
	ProvideKrakenClient,
	ProvideAverageStore,
)

var analysisSet = wire.NewSet(
	ProvidePriceSource,
	ProvideQueryLog,
	ProvideAnalysisEngine,
	ProvideBatchAnalyzer,
	ProvideTaskStore,
	ProvideQueue,
	ProvideAsyncAnalysis,
	ProvideKafkaConsumer,
	ProvideCacheWarmer,
)

var httpSet = wire.NewSet(
	ProvideRateLimiter,
	ProvideHTTPHandler,
	ProvideHTTPServer,
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(infraSet, analysisSet, httpSet, ProvideApp)
	return nil, nil, nil
}

// InitializeEngine builds only what a one-shot analysis needs.
func InitializeEngine(cfg *config.Config) (*usecase.AnalysisEngine, func(), error) {
	wire.Build(infraSet, ProvidePriceSource, ProvideQueryLog, ProvideAnalysisEngine)
	return nil, nil, nil
}
