package usecase

import (
	"context"
	"encoding/json"
	"time"

	"CryptoSouq/internal/domain/models"
	drepo "CryptoSouq/internal/domain/repository"
	"CryptoSouq/pkg/logger"
	"CryptoSouq/pkg/queue"
)

const jobIndexUpsert = "index_upsert"

// indexRetryPayload identifies a durably stored fact whose index write
// failed. The retry job re-reads the row and replays the upsert, so the
// queue never carries the fact body itself.
type indexRetryPayload struct {
	Kind       string    `json:"kind"` // price or news
	Symbol     string    `json:"symbol,omitempty"`
	ObservedAt time.Time `json:"observed_at,omitempty"`
	Source     string    `json:"source,omitempty"`
	URL        string    `json:"url,omitempty"`
}

// Ingestor persists observed facts: synchronously to the fact store,
// best-effort to the search index. An index failure never fails the
// ingest; it is logged, counted and queued for retry.
type Ingestor struct {
	store   drepo.FactStore
	index   drepo.SearchIndex
	retries queue.Service
	metrics drepo.Metrics
	l       *logger.Logger
}

func NewIngestor(store drepo.FactStore, index drepo.SearchIndex, retries queue.Service, metrics drepo.Metrics, l *logger.Logger) *Ingestor {
	return &Ingestor{store: store, index: index, retries: retries, metrics: metrics, l: l}
}

func (i *Ingestor) SavePriceTick(ctx context.Context, t *models.PriceTick) error {
	pair, err := models.NormalizeSymbol(t.Symbol)
	if err != nil {
		return err
	}
	t.Symbol = pair
	if t.Price <= 0 {
		return &models.ValidationError{Field: "price", Reason: "must be positive"}
	}
	if t.Volume < 0 {
		return &models.ValidationError{Field: "volume", Reason: "must not be negative"}
	}
	if t.ObservedAt.IsZero() {
		t.ObservedAt = time.Now().UTC()
	}

	if err := i.store.SavePriceTick(ctx, t); err != nil {
		i.metrics.RecordError("durable_write")
		return err
	}
	i.metrics.RecordFactPersisted("price", t.Symbol)
	i.metrics.RecordLastPrice(t.Symbol, t.Price)

	if err := i.index.UpsertPriceTick(ctx, t); err != nil {
		i.indexFailed(ctx, "price_upsert", err, indexRetryPayload{
			Kind:       "price",
			Symbol:     t.Symbol,
			ObservedAt: t.ObservedAt,
		})
	}
	return nil
}

func (i *Ingestor) SaveNewsItem(ctx context.Context, n *models.NewsItem) error {
	if n.Title == "" {
		return &models.ValidationError{Field: "title", Reason: "is required"}
	}
	if n.URL == "" {
		return &models.ValidationError{Field: "url", Reason: "is required"}
	}
	if !models.ValidSentiment(n.Sentiment) {
		n.Sentiment = models.SentimentNeutral
	}
	if n.ObservedAt.IsZero() {
		n.ObservedAt = time.Now().UTC()
	}

	if err := i.store.SaveNewsItem(ctx, n); err != nil {
		i.metrics.RecordError("durable_write")
		return err
	}
	i.metrics.RecordFactPersisted("news", n.Currency)

	if err := i.index.UpsertNewsItem(ctx, n); err != nil {
		i.indexFailed(ctx, "news_upsert", err, indexRetryPayload{
			Kind:   "news",
			Source: n.Source,
			URL:    n.URL,
		})
	}
	return nil
}

func (i *Ingestor) indexFailed(ctx context.Context, op string, err error, payload indexRetryPayload) {
	i.metrics.RecordError("index_write")
	i.l.Warn("index write failed, queued for retry",
		logger.String("op", op),
		logger.Error(err),
	)
	if i.retries == nil {
		return
	}
	if qerr := i.retries.Enqueue(ctx, jobIndexUpsert, payload); qerr != nil {
		i.l.Error("enqueue index retry failed", logger.Error(qerr))
	}
}

// IndexRetryJob replays failed index upserts from the queue. It re-reads
// the durable row, so the replay always indexes the latest truth.
type IndexRetryJob struct {
	store drepo.FactStore
	index drepo.SearchIndex
	l     *logger.Logger
}

func NewIndexRetryJob(store drepo.FactStore, index drepo.SearchIndex, l *logger.Logger) *IndexRetryJob {
	return &IndexRetryJob{store: store, index: index, l: l}
}

func (j *IndexRetryJob) Name() string { return "index-retry" }

func (j *IndexRetryJob) Type() string { return jobIndexUpsert }

func (j *IndexRetryJob) Handle(ctx context.Context, raw []byte) error {
	var p indexRetryPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		// malformed payload can never succeed, drop it
		j.l.Error("index retry: bad payload", logger.Error(err))
		return nil
	}
	switch p.Kind {
	case "price":
		t, err := j.store.PriceTickAt(ctx, p.Symbol, p.ObservedAt)
		if err != nil {
			return err
		}
		return j.index.UpsertPriceTick(ctx, t)
	case "news":
		n, err := j.store.NewsItemByURL(ctx, p.Source, p.URL)
		if err != nil {
			return err
		}
		return j.index.UpsertNewsItem(ctx, n)
	default:
		j.l.Error("index retry: unknown kind", logger.String("kind", p.Kind))
		return nil
	}
}
