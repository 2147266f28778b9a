package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"DWML/internal/domain/repository"
	"DWML/internal/handler/api"
	internalrepo "DWML/internal/repository"
	"DWML/internal/service/kraken"
	"DWML/internal/service/ratelimit"
	"DWML/internal/usecase"
	"DWML/pkg/cache"
	"DWML/pkg/config"
	"DWML/pkg/database"
	xhttp "DWML/pkg/http"
	pkgkafka "DWML/pkg/kafka"
	applogger "DWML/pkg/logger"
	"DWML/pkg/metrics"
	"DWML/pkg/queue"
	"DWML/pkg/server"
)

// ProvideLogger builds the application logger from the logger section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:   cfg.Logger.Level,
		Format:  cfg.Logger.Format,
		Output:  cfg.Logger.Output,
		Service: api.ServiceName,
	})
}

// ProvideMetrics creates the Prometheus recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideDatabase opens the SQL database selected by database.driver.
func ProvideDatabase(cfg *config.Config) (*database.Client, func(), error) {
	db := cfg.Database
	client, err := database.NewClient(
		database.WithDriver(db.Driver),
		database.WithDSN(db.DSN),
		database.WithHost(db.Host),
		database.WithPort(db.Port),
		database.WithDatabase(db.Database),
		database.WithCredentials(db.User, db.Password),
		database.WithMaxConnections(db.MaxOpenConns, db.MaxIdleConns),
		database.WithTimeouts(db.DialTimeout, db.ReadTimeout),
		database.WithHTTP(db.UseHTTP),
		database.WithAsyncInsert(db.AsyncInsert, db.WaitForAsync),
		database.WithMaxExecutionTime(db.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideSQLStore creates the store and its tables.
func ProvideSQLStore(client *database.Client, l *applogger.Logger) (*internalrepo.SQLStore, error) {
	store, err := internalrepo.NewSQLStoreFromClient(client)
	if err != nil {
		return nil, err
	}
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// ProvideRedisClient dials Redis when redis.enabled is set, otherwise returns nil.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, _, err := cache.NewRedisClient(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.Timeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, err
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCache selects the cache backend. Redis-backed caches share the client.
func ProvideCache(cfg *config.Config, rc *redis.Client) (cache.Service, func(), error) {
	switch cfg.Cache.Backend {
	case "redis":
		if rc == nil {
			return nil, nil, fmt.Errorf("cache backend redis needs redis.enabled")
		}
		return cache.NewRedisCacheFromClient(rc, cfg.Redis.Prefix), func() {}, nil
	case "layered":
		if rc == nil {
			return nil, nil, fmt.Errorf("cache backend layered needs redis.enabled")
		}
		lc := cache.NewLayeredCache(cache.NewRedisCacheFromClient(rc, cfg.Redis.Prefix),
			cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
			cache.WithLayeredL1TTL(cfg.Cache.L1TTL),
		)
		return lc, func() { _ = lc.Close() }, nil
	default:
		mc := cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryCleanup(cfg.Cache.Cleanup),
		)
		return mc, func() { _ = mc.Close() }, nil
	}
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithBatchSize(p.BatchSize),
		pkgkafka.WithBatchTimeout(p.Linger),
		pkgkafka.WithBatchBytes(p.BatchBytes),
		pkgkafka.WithTimeouts(p.WriteTimeout, p.ReadTimeout),
		pkgkafka.WithAsync(p.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvidePublisher wraps the producer. The interface stays nil without Kafka.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKrakenClient creates the exchange client.
func ProvideKrakenClient(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *kraken.Client {
	return kraken.NewClient(
		kraken.WithBaseURL(cfg.Kraken.BaseURL),
		kraken.WithQuote(cfg.Kraken.Quote),
		kraken.WithTimeout(cfg.Kraken.Timeout),
		kraken.WithAliases(cfg.Kraken.Aliases),
		kraken.WithHTTPClient(xhttp.NewClient(
			xhttp.WithTimeout(cfg.Kraken.Timeout),
			xhttp.WithRetry(cfg.Kraken.RetryMax, 0, 0),
			xhttp.WithUserAgent(api.ServiceName+"/"+api.ServiceVersion),
			xhttp.WithClientLogger(l),
		)),
		kraken.WithMetrics(m),
		kraken.WithLogger(l),
	)
}

// ProvideAverageStore selects where opening averages live. The default keeps the
// database row authoritative with the cache in front of it.
func ProvideAverageStore(cfg *config.Config, store *internalrepo.SQLStore, c cache.Service) repository.OpeningAverageStore {
	switch cfg.Analysis.AverageStore {
	case "sql":
		return store
	case "cache":
		return internalrepo.NewCacheAverageStore(c)
	default:
		return internalrepo.NewTieredAverageStore(internalrepo.NewCacheAverageStore(c), store)
	}
}

// ProvidePriceSource puts the opening-average store in front of the exchange.
func ProvidePriceSource(
	cfg *config.Config,
	ex *kraken.Client,
	averages repository.OpeningAverageStore,
	m repository.Metrics,
	l *applogger.Logger,
) *internalrepo.CachedPriceSource {
	return internalrepo.NewCachedPriceSource(ex,
		internalrepo.WithAverageStore(averages),
		internalrepo.WithInterval(cfg.Analysis.Interval),
		internalrepo.WithSourceMetrics(m),
		internalrepo.WithSourceLogger(l),
	)
}

// ProvideQueryLog routes query log writes to SQL or Kafka.
func ProvideQueryLog(store *internalrepo.SQLStore, pub repository.Publisher, m repository.Metrics, cfg *config.Config) (*usecase.QueryLogRouter, error) {
	return usecase.NewQueryLogRouter(store, pub, m, cfg.Analysis.QueryLogBackend)
}

// ProvideAnalysisEngine creates the engine shared by every entry point.
func ProvideAnalysisEngine(
	source *internalrepo.CachedPriceSource,
	ql *usecase.QueryLogRouter,
	store *internalrepo.SQLStore,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.AnalysisEngine {
	opts := []usecase.EngineOption{
		usecase.WithWindow(cfg.Analysis.Window),
		usecase.WithEngineMetrics(m),
		usecase.WithEngineLogger(l),
	}
	if cfg.Analysis.SaveResults {
		opts = append(opts, usecase.WithResultStore(store))
	}
	return usecase.NewAnalysisEngine(source, ql, opts...)
}

// ProvideBatchAnalyzer runs batch requests through the engine.
func ProvideBatchAnalyzer(engine *usecase.AnalysisEngine) *usecase.BatchAnalyzer {
	return usecase.NewBatchAnalyzer(engine)
}

// ProvideTaskStore keeps async task status in the cache.
func ProvideTaskStore(c cache.Service, cfg *config.Config) *internalrepo.CacheTaskStore {
	return internalrepo.NewCacheTaskStore(c, cfg.Cache.TaskTTL)
}

// ProvideQueue creates the job queue with the analysis job registered. It is nil
// when queue.enabled is false.
func ProvideQueue(
	cfg *config.Config,
	rc *redis.Client,
	engine *usecase.AnalysisEngine,
	tasks *internalrepo.CacheTaskStore,
	l *applogger.Logger,
) (queue.Queue, error) {
	if !cfg.Queue.Enabled {
		return nil, nil
	}
	qc := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}

	var q queue.Queue
	switch cfg.Queue.Backend {
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("queue backend redis needs redis.enabled")
		}
		q = queue.NewRedisQueue(l, qc, rc, queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	default:
		q = queue.NewMemoryQueue(l, qc)
	}
	q.RegisterJob(usecase.NewAnalysisJob(engine, tasks, cfg.Queue.RetryLimit, l))
	return q, nil
}

// ProvideAsyncAnalysis is nil when the queue is disabled.
func ProvideAsyncAnalysis(q queue.Queue, tasks *internalrepo.CacheTaskStore) *usecase.AsyncAnalysis {
	if q == nil {
		return nil
	}
	return usecase.NewAsyncAnalysis(q, tasks)
}

// ProvideKafkaConsumer persists query logs published to Kafka. It is nil unless the
// query log goes through Kafka and this instance consumes it.
func ProvideKafkaConsumer(
	cfg *config.Config,
	store *internalrepo.SQLStore,
	m repository.Metrics,
	l *applogger.Logger,
) (*pkgkafka.Consumer, error) {
	kc := cfg.Kafka.Consumer
	if !cfg.Kafka.Enabled || !kc.Enabled || cfg.Analysis.QueryLogBackend != usecase.QueryLogBackendKafka {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(kc.Offset),
		pkgkafka.WithConsumerWorkers(kc.Workers),
		pkgkafka.WithConsumerBufferSize(kc.BufferSize),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic),
		pkgkafka.WithConsumerFetch(kc.MinBytes, kc.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.LoggingHook(l))
	consumer.RegisterHandler(usecase.NewQueryLogSink(cfg.Kafka.Topic, store, m, l))
	return consumer, nil
}

// ProvideCacheWarmer is nil unless scheduler.enabled is set.
func ProvideCacheWarmer(
	cfg *config.Config,
	source *internalrepo.CachedPriceSource,
	c cache.Service,
	l *applogger.Logger,
) (*usecase.CacheWarmer, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	return usecase.NewCacheWarmer(source, cfg.Scheduler.WarmSymbols, cfg.Scheduler.WarmCron,
		usecase.WithWarmerLock(c),
		usecase.WithWarmTimeout(cfg.Scheduler.WarmTimeout),
		usecase.WithWarmerLogger(l),
	)
}

// ProvideRateLimiter is nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
}

// ProvideHTTPHandler assembles the routes. Optional endpoints appear only when their
// backing component exists.
func ProvideHTTPHandler(
	cfg *config.Config,
	engine *usecase.AnalysisEngine,
	batch *usecase.BatchAnalyzer,
	async *usecase.AsyncAnalysis,
	store *internalrepo.SQLStore,
	rc *redis.Client,
	l *applogger.Logger,
) xhttp.Handler {
	opts := []api.HandlerOption{
		api.WithBatch(batch),
		api.WithResults(store, cfg.Analysis.ResultMaxAge),
	}
	if async != nil {
		opts = append(opts, api.WithTasks(async))
	}

	checks := map[string]api.HealthCheck{"database": store.Health}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}

	return api.Routes{
		api.NewHealthEchoHandler(checks),
		api.NewAnalysisEchoHandler(l, engine, opts...),
	}
}

// ProvideHTTPServer creates the echo server with the middleware chain.
func ProvideHTTPServer(cfg *config.Config, handler xhttp.Handler, limiter *ratelimit.Limiter, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.CORSOrigins...),
		xhttp.WithMetrics(cfg.Metrics.Enabled),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithServerLogger(l),
	}
	if limiter != nil {
		opts = append(opts, xhttp.WithRateLimiter(limiter))
	}
	return xhttp.NewServer(handler, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	q queue.Queue,
	consumer *pkgkafka.Consumer,
	warmer *usecase.CacheWarmer,
	limiter *ratelimit.Limiter,
	producer *pkgkafka.Producer,
) *server.App {
	if cfg.Logger.Collect && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{Topic: cfg.Logger.Topic, Publisher: producer})
	}

	opts := []server.Option{server.WithQueue(q), server.WithConsumer(consumer)}
	if warmer != nil {
		opts = append(opts, server.WithScheduler(warmer))
	}
	if limiter != nil {
		opts = append(opts, server.WithSweeper(limiter))
	}
	return server.New(cfg, l, srv, opts...)
}
