package repository

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"CryptoSouq/internal/domain/models"
	pkgch "CryptoSouq/pkg/clickhouse"
	applogger "CryptoSouq/pkg/logger"
)

// CHSearchIndex implements the document index backed by ClickHouse.
// Documents are keyed by the fact's DocID on a ReplacingMergeTree, so
// retried writes collapse into one row. Every failure is wrapped as
// IndexUnavailableError; callers degrade instead of failing.
type CHSearchIndex struct {
	db    *sql.DB
	l     *applogger.Logger
	ready atomic.Bool

	initRetries int
	initBackoff time.Duration
}

func NewCHSearchIndex(ch *pkgch.Client, l *applogger.Logger, initRetries int, initBackoff time.Duration) *CHSearchIndex {
	if initRetries <= 0 {
		initRetries = 3
	}
	if initBackoff <= 0 {
		initBackoff = 2 * time.Second
	}
	return &CHSearchIndex{db: ch.DB(), l: l, initRetries: initRetries, initBackoff: initBackoff}
}

var chSchema = []string{
	`CREATE TABLE IF NOT EXISTS price_docs (
		doc_id      String,
		symbol      LowCardinality(String),
		price       Float64,
		volume      Float64,
		observed_at DateTime64(3, 'UTC'),
		inserted_at DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree(inserted_at)
	ORDER BY doc_id`,
	`CREATE TABLE IF NOT EXISTS news_docs (
		doc_id      String,
		title       String,
		url         String,
		source      String,
		sentiment   LowCardinality(String),
		currency    LowCardinality(String),
		observed_at DateTime64(3, 'UTC'),
		inserted_at DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree(inserted_at)
	ORDER BY doc_id`,
}

// Init creates the document tables, retrying with backoff so a slow
// ClickHouse start does not take the service down. The index stays
// not-ready on final failure and reads fall back to the fact store.
func (s *CHSearchIndex) Init(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= s.initRetries; attempt++ {
		lastErr = s.createTables(ctx)
		if lastErr == nil {
			s.ready.Store(true)
			return nil
		}
		s.l.Warn("search index init failed",
			applogger.Int("attempt", attempt),
			applogger.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return &models.IndexUnavailableError{Op: "init", Err: ctx.Err()}
		case <-time.After(s.initBackoff):
		}
	}
	return &models.IndexUnavailableError{Op: "init", Err: lastErr}
}

func (s *CHSearchIndex) createTables(ctx context.Context) error {
	for _, stmt := range chSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *CHSearchIndex) Ready() bool { return s.ready.Load() }

func (s *CHSearchIndex) UpsertPriceTick(ctx context.Context, t *models.PriceTick) error {
	const q = `INSERT INTO price_docs (doc_id, symbol, price, volume, observed_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, t.DocID(), t.Symbol, t.Price, t.Volume, t.ObservedAt.UTC()); err != nil {
		return &models.IndexUnavailableError{Op: "upsert_price", Err: err}
	}
	return nil
}

func (s *CHSearchIndex) UpsertNewsItem(ctx context.Context, n *models.NewsItem) error {
	const q = `INSERT INTO news_docs (doc_id, title, url, source, sentiment, currency, observed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, n.DocID(), n.Title, n.URL, n.Source, string(n.Sentiment), n.Currency, n.ObservedAt.UTC()); err != nil {
		return &models.IndexUnavailableError{Op: "upsert_news", Err: err}
	}
	return nil
}

func (s *CHSearchIndex) PriceHistory(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.PriceTick, error) {
	const q = `SELECT symbol, price, volume, observed_at FROM price_docs FINAL
		WHERE symbol = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, &models.IndexUnavailableError{Op: "price_history", Err: err}
	}
	defer rows.Close()

	out := make([]models.PriceTick, 0, 128)
	for rows.Next() {
		var t models.PriceTick
		if err := rows.Scan(&t.Symbol, &t.Price, &t.Volume, &t.ObservedAt); err != nil {
			return nil, &models.IndexUnavailableError{Op: "price_history", Err: err}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.IndexUnavailableError{Op: "price_history", Err: err}
	}
	return out, nil
}

func (s *CHSearchIndex) SearchNews(ctx context.Context, text, currency string, limit int) ([]models.NewsItem, error) {
	q := `SELECT title, url, source, sentiment, currency, observed_at FROM news_docs FINAL WHERE 1=1`
	args := make([]any, 0, 3)
	if text != "" {
		q += ` AND positionCaseInsensitive(title, ?) > 0`
		args = append(args, text)
	}
	if currency != "" {
		q += ` AND currency = ?`
		args = append(args, currency)
	}
	q += ` ORDER BY observed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &models.IndexUnavailableError{Op: "search_news", Err: err}
	}
	defer rows.Close()

	out := make([]models.NewsItem, 0, 64)
	for rows.Next() {
		var n models.NewsItem
		var sentiment string
		if err := rows.Scan(&n.Title, &n.URL, &n.Source, &sentiment, &n.Currency, &n.ObservedAt); err != nil {
			return nil, &models.IndexUnavailableError{Op: "search_news", Err: err}
		}
		n.Sentiment = models.SentimentLabel(sentiment)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.IndexUnavailableError{Op: "search_news", Err: err}
	}
	return out, nil
}

func (s *CHSearchIndex) SentimentDistribution(ctx context.Context, currency string) ([]models.SentimentBucket, error) {
	q := `SELECT sentiment, count() FROM news_docs FINAL`
	args := make([]any, 0, 1)
	if currency != "" {
		q += ` WHERE currency = ?`
		args = append(args, currency)
	}
	q += ` GROUP BY sentiment`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &models.IndexUnavailableError{Op: "sentiment_distribution", Err: err}
	}
	defer rows.Close()

	out := make([]models.SentimentBucket, 0, 3)
	for rows.Next() {
		var b models.SentimentBucket
		var label string
		if err := rows.Scan(&label, &b.Count); err != nil {
			return nil, &models.IndexUnavailableError{Op: "sentiment_distribution", Err: err}
		}
		b.Label = models.SentimentLabel(label)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.IndexUnavailableError{Op: "sentiment_distribution", Err: err}
	}
	return out, nil
}

func (s *CHSearchIndex) PriceAnalytics(ctx context.Context, symbol string) (*models.PriceAnalytics, error) {
	const q = `SELECT avg(price), min(price), max(price), sum(volume), avg(volume), count()
		FROM price_docs FINAL
		WHERE symbol = ?`
	var a models.PriceAnalytics
	a.Symbol = symbol
	err := s.db.QueryRowContext(ctx, q, symbol).
		Scan(&a.AvgPrice, &a.MinPrice, &a.MaxPrice, &a.VolumeSum, &a.VolumeAvg, &a.Samples)
	if err != nil {
		return nil, &models.IndexUnavailableError{Op: "price_analytics", Err: err}
	}
	a.Available = true
	return &a, nil
}

func (s *CHSearchIndex) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &models.IndexUnavailableError{Op: "health", Err: err}
	}
	return nil
}

func (s *CHSearchIndex) Close() error {
	return s.db.Close()
}
