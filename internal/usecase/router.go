package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"CryptoSouq/internal/domain/models"
	drepo "CryptoSouq/internal/domain/repository"
	"CryptoSouq/internal/service/cache"
	"CryptoSouq/pkg/logger"
)

// QueryRouter serves reads index-first with a fact-store fallback. An
// index failure downgrades to the relational store and is surfaced only
// when the store also fails.
type QueryRouter struct {
	store      drepo.FactStore
	index      drepo.SearchIndex
	priceCache cache.BytesCache
	priceTTL   time.Duration
	metrics    drepo.Metrics
	l          *logger.Logger
}

func NewQueryRouter(store drepo.FactStore, index drepo.SearchIndex, priceCache cache.BytesCache, priceTTL time.Duration, metrics drepo.Metrics, l *logger.Logger) *QueryRouter {
	if priceTTL <= 0 {
		priceTTL = 5 * time.Second
	}
	return &QueryRouter{store: store, index: index, priceCache: priceCache, priceTTL: priceTTL, metrics: metrics, l: l}
}

// LatestPrice returns the most recent tick for a symbol, served from
// the hot cache when fresh.
func (r *QueryRouter) LatestPrice(ctx context.Context, symbol string) (*models.PriceTick, error) {
	pair, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	cacheKey := "price:latest:" + pair
	if r.priceCache != nil {
		if b, ok, _ := r.priceCache.GetBytes(cacheKey); ok {
			var t models.PriceTick
			if err := json.Unmarshal(b, &t); err == nil {
				return &t, nil
			}
		}
	}

	ticks, err := r.store.LatestPrices(ctx, pair, 1)
	if err != nil {
		return nil, err
	}
	if len(ticks) == 0 {
		return nil, nil
	}
	t := ticks[0]

	if r.priceCache != nil {
		if b, err := json.Marshal(&t); err == nil {
			_ = r.priceCache.SetBytes(cacheKey, b, r.priceTTL)
		}
	}
	return &t, nil
}

// PriceHistory reads from the index and falls back to the store when
// the index is down or not ready.
func (r *QueryRouter) PriceHistory(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.PriceTick, error) {
	pair, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.After(to) {
		return nil, &models.ValidationError{Field: "from", Reason: "must not be after to"}
	}
	if limit <= 0 {
		limit = 500
	}

	if r.index.Ready() {
		ticks, ierr := r.index.PriceHistory(ctx, pair, from, to, limit)
		if ierr == nil {
			return ticks, nil
		}
		r.fallback(ctx, "price_history", ierr)
		ticks, serr := r.store.PriceHistory(ctx, pair, from, to, limit)
		if serr != nil {
			return nil, errors.Join(ierr, serr)
		}
		return ticks, nil
	}

	r.fallback(ctx, "price_history", nil)
	return r.store.PriceHistory(ctx, pair, from, to, limit)
}

// SearchNews reads from the index and falls back to a relational ILIKE
// scan when the index is down.
func (r *QueryRouter) SearchNews(ctx context.Context, text, currency string, limit int) ([]models.NewsItem, error) {
	if limit <= 0 {
		limit = 50
	}

	if r.index.Ready() {
		items, ierr := r.index.SearchNews(ctx, text, currency, limit)
		if ierr == nil {
			return items, nil
		}
		r.fallback(ctx, "search_news", ierr)
		items, serr := r.store.SearchNews(ctx, text, currency, limit)
		if serr != nil {
			return nil, errors.Join(ierr, serr)
		}
		return items, nil
	}

	r.fallback(ctx, "search_news", nil)
	return r.store.SearchNews(ctx, text, currency, limit)
}

// SentimentDistribution aggregates index-first with a relational
// GROUP BY fallback.
func (r *QueryRouter) SentimentDistribution(ctx context.Context, currency string) ([]models.SentimentBucket, error) {
	if r.index.Ready() {
		buckets, ierr := r.index.SentimentDistribution(ctx, currency)
		if ierr == nil {
			return buckets, nil
		}
		r.fallback(ctx, "sentiment_distribution", ierr)
		buckets, serr := r.store.SentimentDistribution(ctx, currency)
		if serr != nil {
			return nil, errors.Join(ierr, serr)
		}
		return buckets, nil
	}

	r.fallback(ctx, "sentiment_distribution", nil)
	return r.store.SentimentDistribution(ctx, currency)
}

// PriceAnalytics has no relational equivalent: when the index cannot
// serve it, the result is explicitly marked unavailable instead of
// failing the request.
func (r *QueryRouter) PriceAnalytics(ctx context.Context, symbol string) (*models.PriceAnalytics, error) {
	pair, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if !r.index.Ready() {
		r.fallback(ctx, "price_analytics", nil)
		return &models.PriceAnalytics{Symbol: pair, Available: false}, nil
	}
	a, ierr := r.index.PriceAnalytics(ctx, pair)
	if ierr != nil {
		r.fallback(ctx, "price_analytics", ierr)
		return &models.PriceAnalytics{Symbol: pair, Available: false}, nil
	}
	return a, nil
}

func (r *QueryRouter) fallback(_ context.Context, op string, err error) {
	r.metrics.RecordFallback(op)
	if err != nil {
		r.l.Warn("index read failed, falling back", logger.String("op", op), logger.Error(err))
	} else {
		r.l.Debug("index not ready, serving from store", logger.String("op", op))
	}
}
