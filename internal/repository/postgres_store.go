package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CryptoSouq/internal/domain/models"
	pkgpg "CryptoSouq/pkg/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGFactStore is the durable relational store backed by Postgres. Every
// observed fact lands here first; the search index is derived from it.
type PGFactStore struct {
	pool *pgxpool.Pool
}

func NewPGFactStore(pg *pkgpg.Client) *PGFactStore {
	return &PGFactStore{pool: pg.Pool()}
}

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS prices (
		id        BIGSERIAL PRIMARY KEY,
		symbol    TEXT NOT NULL,
		price     DOUBLE PRECISION NOT NULL,
		volume    DOUBLE PRECISION NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_prices_symbol_ts ON prices (symbol, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS news (
		id        BIGSERIAL PRIMARY KEY,
		title     TEXT NOT NULL,
		url       TEXT NOT NULL,
		source    TEXT NOT NULL,
		sentiment TEXT NOT NULL,
		currency  TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		UNIQUE (source, url)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_currency_ts ON news (currency, timestamp DESC)`,
}

func (s *PGFactStore) InitSchema(ctx context.Context) error {
	for _, stmt := range pgSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PGFactStore) SavePriceTick(ctx context.Context, t *models.PriceTick) error {
	const q = `INSERT INTO prices (symbol, price, volume, timestamp) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := s.pool.QueryRow(ctx, q, t.Symbol, t.Price, t.Volume, t.ObservedAt).Scan(&t.ID); err != nil {
		return &models.DurabilityError{Op: "save_price", Err: err}
	}
	return nil
}

// SaveNewsItem inserts the article if its (source, url) key is new and
// backfills the row id either way, so duplicate fetches are a no-op.
func (s *PGFactStore) SaveNewsItem(ctx context.Context, n *models.NewsItem) error {
	const ins = `INSERT INTO news (title, url, source, sentiment, currency, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source, url) DO NOTHING
		RETURNING id`
	err := s.pool.QueryRow(ctx, ins, n.Title, n.URL, n.Source, string(n.Sentiment), n.Currency, n.ObservedAt).Scan(&n.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return &models.DurabilityError{Op: "save_news", Err: err}
	}
	const sel = `SELECT id FROM news WHERE source = $1 AND url = $2`
	if err := s.pool.QueryRow(ctx, sel, n.Source, n.URL).Scan(&n.ID); err != nil {
		return &models.DurabilityError{Op: "save_news", Err: err}
	}
	return nil
}

func (s *PGFactStore) PriceHistory(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.PriceTick, error) {
	const q = `SELECT id, symbol, price, volume, timestamp FROM prices
		WHERE symbol = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC, id DESC
		LIMIT $4`
	rows, err := s.pool.Query(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("price history: %w", err)
	}
	defer rows.Close()
	return scanTicks(rows)
}

func (s *PGFactStore) LatestPrices(ctx context.Context, symbol string, limit int) ([]models.PriceTick, error) {
	const q = `SELECT id, symbol, price, volume, timestamp FROM prices
		WHERE symbol = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("latest prices: %w", err)
	}
	defer rows.Close()
	return scanTicks(rows)
}

func scanTicks(rows pgx.Rows) ([]models.PriceTick, error) {
	out := make([]models.PriceTick, 0, 128)
	for rows.Next() {
		var t models.PriceTick
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Price, &t.Volume, &t.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PGFactStore) SearchNews(ctx context.Context, text, currency string, limit int) ([]models.NewsItem, error) {
	q := `SELECT id, title, url, source, sentiment, currency, timestamp FROM news WHERE 1=1`
	args := make([]any, 0, 3)
	if text != "" {
		args = append(args, "%"+text+"%")
		q += fmt.Sprintf(" AND title ILIKE $%d", len(args))
	}
	if currency != "" {
		args = append(args, currency)
		q += fmt.Sprintf(" AND currency = $%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY timestamp DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search news: %w", err)
	}
	defer rows.Close()
	return scanNews(rows)
}

func (s *PGFactStore) LatestNews(ctx context.Context, currency string, limit int) ([]models.NewsItem, error) {
	return s.SearchNews(ctx, "", currency, limit)
}

func scanNews(rows pgx.Rows) ([]models.NewsItem, error) {
	out := make([]models.NewsItem, 0, 64)
	for rows.Next() {
		var n models.NewsItem
		var sentiment string
		if err := rows.Scan(&n.ID, &n.Title, &n.URL, &n.Source, &sentiment, &n.Currency, &n.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		n.Sentiment = models.SentimentLabel(sentiment)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PGFactStore) SentimentDistribution(ctx context.Context, currency string) ([]models.SentimentBucket, error) {
	q := `SELECT sentiment, COUNT(*) FROM news`
	args := make([]any, 0, 1)
	if currency != "" {
		args = append(args, currency)
		q += ` WHERE currency = $1`
	}
	q += ` GROUP BY sentiment`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sentiment distribution: %w", err)
	}
	defer rows.Close()

	out := make([]models.SentimentBucket, 0, 3)
	for rows.Next() {
		var b models.SentimentBucket
		var label string
		if err := rows.Scan(&label, &b.Count); err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		b.Label = models.SentimentLabel(label)
		out = append(out, b)
	}
	return out, rows.Err()
}

// PriceTickAt loads the exact tick row for an index retry.
func (s *PGFactStore) PriceTickAt(ctx context.Context, symbol string, at time.Time) (*models.PriceTick, error) {
	const q = `SELECT id, symbol, price, volume, timestamp FROM prices
		WHERE symbol = $1 AND timestamp = $2
		ORDER BY id DESC LIMIT 1`
	var t models.PriceTick
	if err := s.pool.QueryRow(ctx, q, symbol, at).Scan(&t.ID, &t.Symbol, &t.Price, &t.Volume, &t.ObservedAt); err != nil {
		return nil, fmt.Errorf("price tick at: %w", err)
	}
	return &t, nil
}

// NewsItemByURL loads the article row for an index retry.
func (s *PGFactStore) NewsItemByURL(ctx context.Context, source, url string) (*models.NewsItem, error) {
	const q = `SELECT id, title, url, source, sentiment, currency, timestamp FROM news
		WHERE source = $1 AND url = $2`
	var n models.NewsItem
	var sentiment string
	if err := s.pool.QueryRow(ctx, q, source, url).Scan(&n.ID, &n.Title, &n.URL, &n.Source, &sentiment, &n.Currency, &n.ObservedAt); err != nil {
		return nil, fmt.Errorf("news item by url: %w", err)
	}
	n.Sentiment = models.SentimentLabel(sentiment)
	return &n, nil
}

func (s *PGFactStore) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PGFactStore) Close() {
	s.pool.Close()
}
