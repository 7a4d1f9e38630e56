package usecase

import (
	"context"
	"time"

	"CryptoSouq/internal/domain/models"
	drepo "CryptoSouq/internal/domain/repository"
	"CryptoSouq/internal/service/sentiment"
	"CryptoSouq/pkg/logger"
)

// PricePoller periodically fetches ticker snapshots for the configured
// symbols and hands them to the fact sink. A failed fetch is logged and
// retried on the next cycle, it never aborts the loop.
type PricePoller struct {
	source   drepo.PriceSource
	sink     drepo.FactSink
	symbols  []string
	interval time.Duration
	metrics  drepo.Metrics
	l        *logger.Logger
}

func NewPricePoller(source drepo.PriceSource, sink drepo.FactSink, symbols []string, interval time.Duration, metrics drepo.Metrics, l *logger.Logger) *PricePoller {
	return &PricePoller{source: source, sink: sink, symbols: symbols, interval: interval, metrics: metrics, l: l}
}

func (p *PricePoller) Run(ctx context.Context) {
	p.l.Info("price poller started",
		logger.Strings("symbols", p.symbols),
		logger.Duration("interval", p.interval),
	)
	p.cycle(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.l.Info("price poller stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *PricePoller) cycle(ctx context.Context) {
	for _, symbol := range p.symbols {
		start := time.Now()
		tick, err := p.source.FetchTicker(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.metrics.RecordError("price_fetch")
			p.l.Warn("price fetch failed", logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		p.metrics.RecordLatency("price_fetch", time.Since(start).Seconds())
		if err := p.sink.SavePriceTick(ctx, tick); err != nil {
			p.l.Error("price persist failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
}

// NewsPoller periodically fetches recent articles per currency, scores
// them and hands them to the fact sink. Duplicates are absorbed by the
// store's natural key.
type NewsPoller struct {
	source   drepo.NewsSource
	sink     drepo.FactSink
	scorer   sentiment.Scorer
	symbols  []string
	interval time.Duration
	metrics  drepo.Metrics
	l        *logger.Logger
}

func NewNewsPoller(source drepo.NewsSource, sink drepo.FactSink, scorer sentiment.Scorer, symbols []string, interval time.Duration, metrics drepo.Metrics, l *logger.Logger) *NewsPoller {
	return &NewsPoller{source: source, sink: sink, scorer: scorer, symbols: symbols, interval: interval, metrics: metrics, l: l}
}

func (p *NewsPoller) Run(ctx context.Context) {
	p.l.Info("news poller started", logger.Duration("interval", p.interval))
	p.cycle(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.l.Info("news poller stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *NewsPoller) cycle(ctx context.Context) {
	for _, symbol := range p.symbols {
		pair, err := models.NormalizeSymbol(symbol)
		if err != nil {
			continue
		}
		currency := models.CurrencyCode(pair)
		items, err := p.source.FetchLatest(ctx, currency)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.metrics.RecordError("news_fetch")
			p.l.Warn("news fetch failed", logger.String("currency", currency), logger.Error(err))
			continue
		}
		for i := range items {
			item := &items[i]
			score, err := p.scorer.Score(ctx, item.Title)
			if err != nil {
				p.l.Warn("sentiment scoring failed", logger.Error(err))
				score = models.SentimentScore{Label: models.SentimentNeutral, Confidence: 0.5}
			}
			item.Sentiment = score.Label
			if err := p.sink.SaveNewsItem(ctx, item); err != nil {
				p.l.Error("news persist failed", logger.String("url", item.URL), logger.Error(err))
			}
		}
	}
}
