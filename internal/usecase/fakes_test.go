package usecase

import (
	"context"
	"sync"
	"time"

	"CryptoSouq/internal/domain/models"
)

type fakeStore struct {
	mu        sync.Mutex
	ticks     []models.PriceTick
	news      []models.NewsItem
	saveErr   error
	queryErr  error
	nextTickID int64
	nextNewsID int64
}

func (s *fakeStore) InitSchema(context.Context) error { return nil }

func (s *fakeStore) SavePriceTick(_ context.Context, t *models.PriceTick) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTickID++
	t.ID = s.nextTickID
	s.ticks = append(s.ticks, *t)
	return nil
}

func (s *fakeStore) SaveNewsItem(_ context.Context, n *models.NewsItem) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.news {
		if existing.Source == n.Source && existing.URL == n.URL {
			n.ID = existing.ID
			return nil
		}
	}
	s.nextNewsID++
	n.ID = s.nextNewsID
	s.news = append(s.news, *n)
	return nil
}

func (s *fakeStore) PriceHistory(_ context.Context, symbol string, from, to time.Time, limit int) ([]models.PriceTick, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PriceTick, 0)
	for i := len(s.ticks) - 1; i >= 0 && len(out) < limit; i-- {
		t := s.ticks[i]
		if t.Symbol == symbol && !t.ObservedAt.Before(from) && !t.ObservedAt.After(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) LatestPrices(_ context.Context, symbol string, limit int) ([]models.PriceTick, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PriceTick, 0)
	for i := len(s.ticks) - 1; i >= 0 && len(out) < limit; i-- {
		if s.ticks[i].Symbol == symbol {
			out = append(out, s.ticks[i])
		}
	}
	return out, nil
}

func (s *fakeStore) SearchNews(_ context.Context, _, currency string, limit int) ([]models.NewsItem, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.NewsItem, 0)
	for i := len(s.news) - 1; i >= 0 && len(out) < limit; i-- {
		if currency == "" || s.news[i].Currency == currency {
			out = append(out, s.news[i])
		}
	}
	return out, nil
}

func (s *fakeStore) LatestNews(ctx context.Context, currency string, limit int) ([]models.NewsItem, error) {
	return s.SearchNews(ctx, "", currency, limit)
}

func (s *fakeStore) SentimentDistribution(_ context.Context, currency string) ([]models.SentimentBucket, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[models.SentimentLabel]int64{}
	for _, n := range s.news {
		if currency == "" || n.Currency == currency {
			counts[n.Sentiment]++
		}
	}
	out := make([]models.SentimentBucket, 0, len(counts))
	for label, c := range counts {
		out = append(out, models.SentimentBucket{Label: label, Count: c})
	}
	return out, nil
}

func (s *fakeStore) PriceTickAt(_ context.Context, symbol string, at time.Time) (*models.PriceTick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.ticks) - 1; i >= 0; i-- {
		if s.ticks[i].Symbol == symbol && s.ticks[i].ObservedAt.Equal(at) {
			t := s.ticks[i]
			return &t, nil
		}
	}
	return nil, &models.DurabilityError{Op: "price_tick_at", Err: context.Canceled}
}

func (s *fakeStore) NewsItemByURL(_ context.Context, source, url string) (*models.NewsItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.news {
		if n.Source == source && n.URL == url {
			item := n
			return &item, nil
		}
	}
	return nil, &models.DurabilityError{Op: "news_item_by_url", Err: context.Canceled}
}

func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close()                       {}

type fakeIndex struct {
	mu       sync.Mutex
	prices   map[string]models.PriceTick
	news     map[string]models.NewsItem
	writeErr error
	readErr  error
	ready    bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		prices: map[string]models.PriceTick{},
		news:   map[string]models.NewsItem{},
		ready:  true,
	}
}

func (f *fakeIndex) Init(context.Context) error { return nil }
func (f *fakeIndex) Ready() bool                { return f.ready }

func (f *fakeIndex) UpsertPriceTick(_ context.Context, t *models.PriceTick) error {
	if f.writeErr != nil {
		return &models.IndexUnavailableError{Op: "upsert_price", Err: f.writeErr}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[t.DocID()] = *t
	return nil
}

func (f *fakeIndex) UpsertNewsItem(_ context.Context, n *models.NewsItem) error {
	if f.writeErr != nil {
		return &models.IndexUnavailableError{Op: "upsert_news", Err: f.writeErr}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.news[n.DocID()] = *n
	return nil
}

func (f *fakeIndex) PriceHistory(_ context.Context, symbol string, from, to time.Time, limit int) ([]models.PriceTick, error) {
	if f.readErr != nil {
		return nil, &models.IndexUnavailableError{Op: "price_history", Err: f.readErr}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PriceTick, 0)
	for _, t := range f.prices {
		if t.Symbol == symbol && !t.ObservedAt.Before(from) && !t.ObservedAt.After(to) && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeIndex) SearchNews(_ context.Context, _, currency string, limit int) ([]models.NewsItem, error) {
	if f.readErr != nil {
		return nil, &models.IndexUnavailableError{Op: "search_news", Err: f.readErr}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.NewsItem, 0)
	for _, n := range f.news {
		if (currency == "" || n.Currency == currency) && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeIndex) SentimentDistribution(_ context.Context, currency string) ([]models.SentimentBucket, error) {
	if f.readErr != nil {
		return nil, &models.IndexUnavailableError{Op: "sentiment_distribution", Err: f.readErr}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[models.SentimentLabel]int64{}
	for _, n := range f.news {
		if currency == "" || n.Currency == currency {
			counts[n.Sentiment]++
		}
	}
	out := make([]models.SentimentBucket, 0, len(counts))
	for label, c := range counts {
		out = append(out, models.SentimentBucket{Label: label, Count: c})
	}
	return out, nil
}

func (f *fakeIndex) PriceAnalytics(_ context.Context, symbol string) (*models.PriceAnalytics, error) {
	if f.readErr != nil {
		return nil, &models.IndexUnavailableError{Op: "price_analytics", Err: f.readErr}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &models.PriceAnalytics{Symbol: symbol, Available: true}
	for _, t := range f.prices {
		if t.Symbol != symbol {
			continue
		}
		a.Samples++
		a.VolumeSum += t.Volume
		a.AvgPrice += t.Price
		if a.MinPrice == 0 || t.Price < a.MinPrice {
			a.MinPrice = t.Price
		}
		if t.Price > a.MaxPrice {
			a.MaxPrice = t.Price
		}
	}
	if a.Samples > 0 {
		a.AvgPrice /= float64(a.Samples)
		a.VolumeAvg = a.VolumeSum / float64(a.Samples)
	}
	return a, nil
}

func (f *fakeIndex) Health(context.Context) error { return nil }
func (f *fakeIndex) Close() error                 { return nil }

type queuedJob struct {
	Type    string
	Payload any
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []queuedJob
}

func (q *fakeQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, queuedJob{Type: msgType, Payload: payload})
	return nil
}

type fakeMetrics struct {
	mu        sync.Mutex
	persisted map[string]int
	errors    map[string]int
	fallbacks map[string]int
	lastPrice map[string]float64
	relaySubs map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		persisted: map[string]int{},
		errors:    map[string]int{},
		fallbacks: map[string]int{},
		lastPrice: map[string]float64{},
		relaySubs: map[string]int{},
	}
}

func (m *fakeMetrics) RecordFactPersisted(kind, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted[kind+"/"+symbol]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordFallback(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks[op]++
}

func (m *fakeMetrics) RecordLastPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPrice[symbol] = price
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) SetRelaySubscribers(symbol string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relaySubs[symbol] = n
}
