package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"CryptoSouq/internal/domain/models"
	"CryptoSouq/internal/service/cache"
	"CryptoSouq/pkg/logger"
)

func newTestRouter(store *fakeStore, index *fakeIndex, m *fakeMetrics) *QueryRouter {
	return NewQueryRouter(store, index, cache.NewTTLCache(), time.Second, m, logger.Nop())
}

func seedBoth(t *testing.T, store *fakeStore, index *fakeIndex, ticks ...models.PriceTick) {
	t.Helper()
	for i := range ticks {
		if err := store.SavePriceTick(context.Background(), &ticks[i]); err != nil {
			t.Fatalf("seed store: %v", err)
		}
		if err := index.UpsertPriceTick(context.Background(), &ticks[i]); err != nil {
			t.Fatalf("seed index: %v", err)
		}
	}
}

func TestPriceHistoryServedFromIndex(t *testing.T) {
	store := &fakeStore{}
	index := newFakeIndex()
	m := newFakeMetrics()
	r := newTestRouter(store, index, m)

	now := time.Now().UTC()
	seedBoth(t, store, index, models.PriceTick{Symbol: "BTCUSDT", Price: 100, Volume: 1, ObservedAt: now})

	ticks, err := r.PriceHistory(context.Background(), "BTCUSDT", now.Add(-time.Hour), now.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("expected 1 tick, got %d", len(ticks))
	}
	if m.fallbacks["price_history"] != 0 {
		t.Fatalf("expected no fallback")
	}
}

func TestPriceHistoryFallsBackToStore(t *testing.T) {
	store := &fakeStore{}
	index := newFakeIndex()
	m := newFakeMetrics()
	r := newTestRouter(store, index, m)

	now := time.Now().UTC()
	tick := models.PriceTick{Symbol: "BTCUSDT", Price: 100, Volume: 1, ObservedAt: now}
	if err := store.SavePriceTick(context.Background(), &tick); err != nil {
		t.Fatalf("seed: %v", err)
	}
	index.readErr = errors.New("index down")

	ticks, err := r.PriceHistory(context.Background(), "BTCUSDT", now.Add(-time.Hour), now.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("expected fallback to succeed: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("expected 1 tick from store, got %d", len(ticks))
	}
	if m.fallbacks["price_history"] != 1 {
		t.Fatalf("expected fallback metric")
	}
}

func TestPriceHistoryJoinsBothFailures(t *testing.T) {
	store := &fakeStore{queryErr: errors.New("store down")}
	index := newFakeIndex()
	index.readErr = errors.New("index down")
	r := newTestRouter(store, index, newFakeMetrics())

	now := time.Now().UTC()
	_, err := r.PriceHistory(context.Background(), "BTCUSDT", now.Add(-time.Hour), now, 10)
	if err == nil {
		t.Fatalf("expected error when both backends fail")
	}
	var ierr *models.IndexUnavailableError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected joined error to carry the index failure, got %v", err)
	}
}

func TestPriceHistoryRejectsInvertedRange(t *testing.T) {
	r := newTestRouter(&fakeStore{}, newFakeIndex(), newFakeMetrics())
	now := time.Now().UTC()
	_, err := r.PriceHistory(context.Background(), "BTCUSDT", now, now.Add(-time.Hour), 10)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestNotReadyIndexSkipsStraightToStore(t *testing.T) {
	store := &fakeStore{}
	index := newFakeIndex()
	index.ready = false
	m := newFakeMetrics()
	r := newTestRouter(store, index, m)

	now := time.Now().UTC()
	tick := models.PriceTick{Symbol: "BTCUSDT", Price: 100, Volume: 1, ObservedAt: now}
	if err := store.SavePriceTick(context.Background(), &tick); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ticks, err := r.PriceHistory(context.Background(), "BTCUSDT", now.Add(-time.Hour), now.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("expected store read, got %d ticks", len(ticks))
	}
	if m.fallbacks["price_history"] != 1 {
		t.Fatalf("expected fallback metric for not-ready index")
	}
}

func TestLatestPriceUsesCache(t *testing.T) {
	store := &fakeStore{}
	index := newFakeIndex()
	r := newTestRouter(store, index, newFakeMetrics())

	now := time.Now().UTC()
	tick := models.PriceTick{Symbol: "BTCUSDT", Price: 100, Volume: 1, ObservedAt: now}
	if err := store.SavePriceTick(context.Background(), &tick); err != nil {
		t.Fatalf("seed: %v", err)
	}

	first, err := r.LatestPrice(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == nil || first.Price != 100 {
		t.Fatalf("unexpected tick %+v", first)
	}

	// Store goes down; the cached value still serves.
	store.queryErr = errors.New("store down")
	second, err := r.LatestPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("expected cached read, got %v", err)
	}
	if second == nil || second.Price != 100 {
		t.Fatalf("unexpected cached tick %+v", second)
	}
}

func TestPriceAnalyticsUnavailableOnIndexFailure(t *testing.T) {
	store := &fakeStore{}
	index := newFakeIndex()
	index.readErr = errors.New("index down")
	m := newFakeMetrics()
	r := newTestRouter(store, index, m)

	a, err := r.PriceAnalytics(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("analytics must degrade, not fail: %v", err)
	}
	if a.Available {
		t.Fatalf("expected unavailable analytics")
	}
	if a.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected symbol %q", a.Symbol)
	}
	if m.fallbacks["price_analytics"] != 1 {
		t.Fatalf("expected fallback metric")
	}
}

func TestSentimentDistributionFallsBack(t *testing.T) {
	store := &fakeStore{}
	index := newFakeIndex()
	m := newFakeMetrics()
	r := newTestRouter(store, index, m)

	n := models.NewsItem{Title: "t", URL: "u", Source: "s", Currency: "BTC", Sentiment: models.SentimentBullish, ObservedAt: time.Now()}
	if err := store.SaveNewsItem(context.Background(), &n); err != nil {
		t.Fatalf("seed: %v", err)
	}
	index.readErr = errors.New("index down")

	buckets, err := r.SentimentDistribution(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("expected relational fallback: %v", err)
	}
	if len(buckets) != 1 || buckets[0].Label != models.SentimentBullish || buckets[0].Count != 1 {
		t.Fatalf("unexpected buckets %+v", buckets)
	}
}
