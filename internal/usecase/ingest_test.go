package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"CryptoSouq/internal/domain/models"
	"CryptoSouq/pkg/logger"
)

func newTestIngestor(store *fakeStore, index *fakeIndex, q *fakeQueue, m *fakeMetrics) *Ingestor {
	return NewIngestor(store, index, q, m, logger.Nop())
}

func TestIngestPriceTick(t *testing.T) {
	store := &fakeStore{}
	index := newFakeIndex()
	q := &fakeQueue{}
	m := newFakeMetrics()
	ing := newTestIngestor(store, index, q, m)

	tick := &models.PriceTick{Symbol: "btcusdt", Price: 65000, Volume: 1.5, ObservedAt: time.Now().UTC()}
	if err := ing.SavePriceTick(context.Background(), tick); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tick.Symbol != "BTCUSDT" {
		t.Fatalf("expected normalized symbol, got %q", tick.Symbol)
	}
	if len(store.ticks) != 1 {
		t.Fatalf("expected 1 stored tick, got %d", len(store.ticks))
	}
	if len(index.prices) != 1 {
		t.Fatalf("expected 1 indexed doc, got %d", len(index.prices))
	}
	if len(q.jobs) != 0 {
		t.Fatalf("expected no retry jobs, got %d", len(q.jobs))
	}
	if m.lastPrice["BTCUSDT"] != 65000 {
		t.Fatalf("expected last price gauge update")
	}
}

func TestIngestRejectsInvalidTicks(t *testing.T) {
	store := &fakeStore{}
	ing := newTestIngestor(store, newFakeIndex(), &fakeQueue{}, newFakeMetrics())

	cases := []*models.PriceTick{
		{Symbol: "NOPEUSDT", Price: 1, Volume: 1},
		{Symbol: "BTCUSDT", Price: 0, Volume: 1},
		{Symbol: "BTCUSDT", Price: -5, Volume: 1},
		{Symbol: "BTCUSDT", Price: 1, Volume: -1},
	}
	for _, tick := range cases {
		err := ing.SavePriceTick(context.Background(), tick)
		var verr *models.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError for %+v, got %v", tick, err)
		}
	}
	if len(store.ticks) != 0 {
		t.Fatalf("invalid ticks must not reach the store")
	}
}

func TestIngestStoreFailureIsFatal(t *testing.T) {
	store := &fakeStore{saveErr: &models.DurabilityError{Op: "save_price", Err: errors.New("down")}}
	index := newFakeIndex()
	ing := newTestIngestor(store, index, &fakeQueue{}, newFakeMetrics())

	tick := &models.PriceTick{Symbol: "BTCUSDT", Price: 1, Volume: 1, ObservedAt: time.Now()}
	err := ing.SavePriceTick(context.Background(), tick)
	var derr *models.DurabilityError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DurabilityError, got %v", err)
	}
	if len(index.prices) != 0 {
		t.Fatalf("store failure must not reach the index")
	}
}

func TestIngestIndexFailureQueuesRetry(t *testing.T) {
	store := &fakeStore{}
	index := newFakeIndex()
	index.writeErr = errors.New("index down")
	q := &fakeQueue{}
	m := newFakeMetrics()
	ing := newTestIngestor(store, index, q, m)

	at := time.Now().UTC()
	tick := &models.PriceTick{Symbol: "ETHUSDT", Price: 3000, Volume: 2, ObservedAt: at}
	if err := ing.SavePriceTick(context.Background(), tick); err != nil {
		t.Fatalf("index failure must not fail the ingest: %v", err)
	}
	if len(store.ticks) != 1 {
		t.Fatalf("expected durable write despite index failure")
	}
	if len(q.jobs) != 1 || q.jobs[0].Type != jobIndexUpsert {
		t.Fatalf("expected one index retry job, got %+v", q.jobs)
	}
	p, ok := q.jobs[0].Payload.(indexRetryPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", q.jobs[0].Payload)
	}
	if p.Kind != "price" || p.Symbol != "ETHUSDT" || !p.ObservedAt.Equal(at) {
		t.Fatalf("unexpected payload %+v", p)
	}
	if m.errors["index_write"] != 1 {
		t.Fatalf("expected index_write error metric")
	}
}

func TestIngestNewsDefaultsSentimentAndDedupes(t *testing.T) {
	store := &fakeStore{}
	index := newFakeIndex()
	ing := newTestIngestor(store, index, &fakeQueue{}, newFakeMetrics())

	n := &models.NewsItem{Title: "t", URL: "https://example.com/a", Source: "src", Currency: "BTC"}
	if err := ing.SaveNewsItem(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Sentiment != models.SentimentNeutral {
		t.Fatalf("expected Neutral default, got %s", n.Sentiment)
	}

	dup := &models.NewsItem{Title: "t", URL: "https://example.com/a", Source: "src", Currency: "BTC", Sentiment: models.SentimentBullish}
	if err := ing.SaveNewsItem(context.Background(), dup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.news) != 1 {
		t.Fatalf("expected dedup on (source, url), got %d rows", len(store.news))
	}
	if len(index.news) != 1 {
		t.Fatalf("expected single index doc, got %d", len(index.news))
	}
}

func TestIndexRetryJobReplaysFromStore(t *testing.T) {
	store := &fakeStore{}
	index := newFakeIndex()
	index.writeErr = errors.New("index down")
	q := &fakeQueue{}
	ing := newTestIngestor(store, index, q, newFakeMetrics())

	at := time.Now().UTC()
	tick := &models.PriceTick{Symbol: "BTCUSDT", Price: 100, Volume: 1, ObservedAt: at}
	if err := ing.SavePriceTick(context.Background(), tick); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Index recovers; the retry job replays from the durable row.
	index.writeErr = nil
	job := NewIndexRetryJob(store, index, logger.Nop())
	raw := []byte(`{"kind":"price","symbol":"BTCUSDT","observed_at":"` + at.Format(time.RFC3339Nano) + `"}`)
	if err := job.Handle(context.Background(), raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(index.prices) != 1 {
		t.Fatalf("expected replayed index doc")
	}
}
