package di

import (
	"context"
	"fmt"
	"time"

	"CryptoSouq/internal/domain/repository"
	"CryptoSouq/internal/handler/api"
	"CryptoSouq/internal/relay"
	internalrepo "CryptoSouq/internal/repository"
	"CryptoSouq/internal/service/binance"
	icache "CryptoSouq/internal/service/cache"
	"CryptoSouq/internal/service/news"
	"CryptoSouq/internal/service/ratelimit"
	"CryptoSouq/internal/service/sentiment"
	"CryptoSouq/internal/usecase"
	pkgch "CryptoSouq/pkg/clickhouse"
	"CryptoSouq/pkg/config"
	xhttp "CryptoSouq/pkg/http"
	pkgkafka "CryptoSouq/pkg/kafka"
	"CryptoSouq/pkg/logger"
	"CryptoSouq/pkg/metrics"
	pkgpg "CryptoSouq/pkg/postgres"
	"CryptoSouq/pkg/queue"
	"CryptoSouq/pkg/server"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePostgresClient creates the Postgres pool and runs migrations.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, error) {
	client, err := pkgpg.NewClient(
		pkgpg.WithHost(cfg.Postgres.Host),
		pkgpg.WithPort(cfg.Postgres.Port),
		pkgpg.WithDatabase(cfg.Postgres.Database),
		pkgpg.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		pkgpg.WithPool(cfg.Postgres.MaxConns, cfg.Postgres.MinConns),
		pkgpg.WithSSLMode(cfg.Postgres.SSLMode),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	return client, nil
}

// ProvideFactStore creates the durable store and initializes its
// schema. A failure here is fatal: there is no service without the
// source of truth.
func ProvideFactStore(pg *pkgpg.Client) (repository.FactStore, error) {
	store := internalrepo.NewPGFactStore(pg)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := store.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return store, nil
}

// ProvideClickHouseClient creates the ClickHouse connection.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSearchIndex creates the document index. Init runs in the
// background: a down ClickHouse degrades reads, it never blocks boot.
func ProvideSearchIndex(cfg *config.Config, ch *pkgch.Client, l *logger.Logger) repository.SearchIndex {
	idx := internalrepo.NewCHSearchIndex(ch, l, cfg.ClickHouse.InitRetries, cfg.ClickHouse.InitBackoff)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := idx.Init(ctx); err != nil {
			l.Warn("search index unavailable, serving from store", logger.Error(err))
		}
	}()
	return idx
}

// ProvideRedisClient creates the shared Redis connection, or nil when
// Redis is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideRetryQueue creates the index-retry queue, or nil without Redis.
func ProvideRetryQueue(cfg *config.Config, client *redis.Client, l *logger.Logger) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	return queue.NewRedisQueue(l, &queue.Config{
		Workers:    cfg.Redis.QueueWorkers,
		RetryLimit: cfg.Redis.RetryLimit,
		RetryDelay: cfg.Redis.RetryDelay,
	}, client)
}

// ProvidePriceCache picks the shared Redis cache when available,
// otherwise an in-process TTL cache.
func ProvidePriceCache(client *redis.Client) icache.BytesCache {
	if client == nil {
		return icache.NewTTLCache()
	}
	return icache.NewRedisCache(client)
}

// ProvideRateLimiter creates the per-source interval limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Interval {
	l := ratelimit.NewInterval()
	l.SetMinInterval("binance", cfg.Binance.MinInterval)
	l.SetMinInterval("cryptopanic", cfg.News.MinInterval)
	return l
}

// ProvidePriceSource creates the Binance REST client.
func ProvidePriceSource(cfg *config.Config, limiter *ratelimit.Interval, l *logger.Logger) repository.PriceSource {
	return binance.NewRestClient(cfg.Binance.BaseURL, cfg.Binance.RequestTimeout, limiter, l)
}

// ProvideStreamDialer creates the Binance WebSocket dialer.
func ProvideStreamDialer(cfg *config.Config) repository.StreamDialer {
	return binance.NewDialer(cfg.Binance.WebSocketURL, 30*time.Second)
}

// ProvideNewsSource creates the CryptoPanic client.
func ProvideNewsSource(cfg *config.Config, limiter *ratelimit.Interval) repository.NewsSource {
	return news.NewClient(cfg.News.BaseURL, cfg.News.APIKey, cfg.News.RequestTimeout, cfg.News.PageSize, limiter)
}

// ProvideScorer picks the sentiment backend by configured mode.
func ProvideScorer(cfg *config.Config) sentiment.Scorer {
	if cfg.Sentiment.Mode == "http" && cfg.Sentiment.URL != "" {
		return sentiment.NewHTTPScorer(cfg.Sentiment.URL, cfg.Sentiment.Timeout)
	}
	return sentiment.NewLexiconScorer()
}

// ProvideIngestor creates the dual-store ingest path and registers the
// index-retry job when a queue exists.
func ProvideIngestor(store repository.FactStore, index repository.SearchIndex, retryQueue *queue.RedisQueue, m repository.Metrics, l *logger.Logger) *usecase.Ingestor {
	var retries queue.Service
	if retryQueue != nil {
		retryQueue.RegisterJob(usecase.NewIndexRetryJob(store, index, l))
		retries = retryQueue
	}
	return usecase.NewIngestor(store, index, retries, m, l)
}

// ProvideFactSink routes facts directly into the ingestor or through
// Kafka, depending on the backend mode.
func ProvideFactSink(cfg *config.Config, ing *usecase.Ingestor) (repository.FactSink, error) {
	if cfg.Backend.Type != "kafka" {
		return ing, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return usecase.NewKafkaFactSink(producer, cfg.Kafka.Topic), nil
}

// ProvideKafkaConsumer creates the facts consumer in kafka backend
// mode, nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.GroupID),
		pkgkafka.WithConsumerTopic(cfg.Kafka.Topic),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.RetryMax, cfg.Kafka.BackoffMin, cfg.Kafka.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideFactsHandler persists consumed facts through the ingestor.
func ProvideFactsHandler(cfg *config.Config, ing *usecase.Ingestor) pkgkafka.MessageHandler {
	if cfg.Backend.Type != "kafka" {
		return nil
	}
	return usecase.NewFactsHandler(cfg.Kafka.Topic, ing)
}

// ProvideQueryRouter creates the index-first read path.
func ProvideQueryRouter(cfg *config.Config, store repository.FactStore, index repository.SearchIndex, priceCache icache.BytesCache, m repository.Metrics, l *logger.Logger) *usecase.QueryRouter {
	return usecase.NewQueryRouter(store, index, priceCache, cfg.Redis.PriceCacheTTL, m, l)
}

// ProvideForecastEngine creates the autoregressive forecast engine.
func ProvideForecastEngine(cfg *config.Config, store repository.FactStore, m repository.Metrics, l *logger.Logger) *usecase.ForecastEngine {
	return usecase.NewForecastEngine(store, usecase.ForecastConfig{
		Lookback:        cfg.Forecast.Lookback,
		MinObservations: cfg.Forecast.MinObservations,
		TrainWindow:     cfg.Forecast.TrainWindow,
		RetrainAfter:    cfg.Forecast.RetrainAfter,
		CacheTTL:        cfg.Forecast.CacheTTL,
	}, m, l)
}

// ProvideHub creates the live relay. Relayed ticks feed the fact sink
// only when configured.
func ProvideHub(cfg *config.Config, dialer repository.StreamDialer, sink repository.FactSink, m repository.Metrics, l *logger.Logger) *relay.Hub {
	var relaySink repository.FactSink
	if cfg.Binance.FeedToStore {
		relaySink = sink
	}
	return relay.NewHub(dialer, relaySink, m, l)
}

// ProvidePricePoller creates the ticker polling loop.
func ProvidePricePoller(cfg *config.Config, source repository.PriceSource, sink repository.FactSink, m repository.Metrics, l *logger.Logger) *usecase.PricePoller {
	return usecase.NewPricePoller(source, sink, cfg.Binance.Symbols, cfg.Binance.PollInterval, m, l)
}

// ProvideNewsPoller creates the news polling loop.
func ProvideNewsPoller(cfg *config.Config, source repository.NewsSource, sink repository.FactSink, scorer sentiment.Scorer, m repository.Metrics, l *logger.Logger) *usecase.NewsPoller {
	return usecase.NewNewsPoller(source, sink, scorer, cfg.Binance.Symbols, cfg.News.PollInterval, m, l)
}

// combinedHandler registers every route group on one Echo instance.
type combinedHandler struct {
	handlers []xhttp.Handler
}

func (c *combinedHandler) RegisterRoutes(e *echo.Echo) {
	for _, h := range c.handlers {
		h.RegisterRoutes(e)
	}
}

// ProvideHTTPHandler assembles the REST and WebSocket route groups.
func ProvideHTTPHandler(l *logger.Logger, router *usecase.QueryRouter, engine *usecase.ForecastEngine, scorer sentiment.Scorer, store repository.FactStore, index repository.SearchIndex, hub *relay.Hub) xhttp.Handler {
	return &combinedHandler{handlers: []xhttp.Handler{
		api.NewMarketHandler(l, router, engine, scorer, store, index),
		api.NewRelayHandler(l, hub),
	}}
}

// ProvideApp assembles the application with its shutdown hooks.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	pricePoller *usecase.PricePoller,
	newsPoller *usecase.NewsPoller,
	hub *relay.Hub,
	retryQueue *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	httpHandler xhttp.Handler,
	pg *pkgpg.Client,
	ch *pkgch.Client,
) *server.App {
	app := server.New(cfg, l, pricePoller, newsPoller, hub, retryQueue, consumer, kh, httpHandler)
	app.OnShutdown(func() { _ = ch.Close() })
	app.OnShutdown(pg.Close)
	return app
}
