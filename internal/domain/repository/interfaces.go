package repository

import (
	"context"
	"time"

	"CryptoSouq/internal/domain/models"
)

// FactStore is the durable relational store, the source of truth for
// every observed fact. Writes are synchronous and transactional per
// fact; a failure here is fatal to the triggering operation.
type FactStore interface {
	InitSchema(ctx context.Context) error
	SavePriceTick(ctx context.Context, t *models.PriceTick) error
	SaveNewsItem(ctx context.Context, n *models.NewsItem) error
	PriceHistory(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.PriceTick, error)
	LatestPrices(ctx context.Context, symbol string, limit int) ([]models.PriceTick, error)
	SearchNews(ctx context.Context, text, currency string, limit int) ([]models.NewsItem, error)
	LatestNews(ctx context.Context, currency string, limit int) ([]models.NewsItem, error)
	SentimentDistribution(ctx context.Context, currency string) ([]models.SentimentBucket, error)
	PriceTickAt(ctx context.Context, symbol string, at time.Time) (*models.PriceTick, error)
	NewsItemByURL(ctx context.Context, source, url string) (*models.NewsItem, error)
	Health(ctx context.Context) error
	Close()
}

// SearchIndex is the derived, lossy-tolerant document index. Writes are
// best-effort upserts keyed by the fact's DocID; reads may fail and the
// caller falls back to the FactStore.
type SearchIndex interface {
	Init(ctx context.Context) error
	Ready() bool
	UpsertPriceTick(ctx context.Context, t *models.PriceTick) error
	UpsertNewsItem(ctx context.Context, n *models.NewsItem) error
	PriceHistory(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.PriceTick, error)
	SearchNews(ctx context.Context, text, currency string, limit int) ([]models.NewsItem, error)
	SentimentDistribution(ctx context.Context, currency string) ([]models.SentimentBucket, error)
	PriceAnalytics(ctx context.Context, symbol string) (*models.PriceAnalytics, error)
	Health(ctx context.Context) error
	Close() error
}

// FactSink accepts observed facts for persistence. Implemented directly
// by the ingestor and, in kafka backend mode, by a publisher that defers
// persistence to the consumer side.
type FactSink interface {
	SavePriceTick(ctx context.Context, t *models.PriceTick) error
	SaveNewsItem(ctx context.Context, n *models.NewsItem) error
}

// PriceSource fetches the current ticker for a symbol under the
// source's minimum polling interval.
type PriceSource interface {
	FetchTicker(ctx context.Context, symbol string) (*models.PriceTick, error)
}

// NewsSource fetches a bounded list of recent articles for a currency
// under the source's minimum polling interval.
type NewsSource interface {
	FetchLatest(ctx context.Context, currency string) ([]models.NewsItem, error)
}

// MarketStream is one live upstream subscription for a single symbol.
type MarketStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error)
	Close() error
}

// StreamDialer opens a MarketStream for a symbol. The relay owns at
// most one open stream per symbol, shared by all its subscribers.
type StreamDialer interface {
	Open(symbol string) (MarketStream, error)
}

// Metrics records operational measurements.
type Metrics interface {
	RecordFactPersisted(kind, symbol string)
	RecordError(kind string)
	RecordFallback(op string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	SetRelaySubscribers(symbol string, n int)
}
