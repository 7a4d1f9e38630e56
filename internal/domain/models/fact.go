package models

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// PriceTick is one observed price/volume point for a symbol.
// Immutable once persisted; (symbol, observed_at) is the index identity.
type PriceTick struct {
	ID         int64     `json:"id,omitempty"`
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Volume     float64   `json:"volume"`
	ObservedAt time.Time `json:"observed_at"`
}

// DocID returns the deterministic index document id for the tick, so
// repeated index attempts upsert instead of duplicating.
func (t *PriceTick) DocID() string {
	return fmt.Sprintf("%s-%s", t.Symbol, t.ObservedAt.UTC().Format(time.RFC3339Nano))
}

// SentimentLabel classifies the tone of a news item.
type SentimentLabel string

const (
	SentimentBearish SentimentLabel = "Bearish"
	SentimentNeutral SentimentLabel = "Neutral"
	SentimentBullish SentimentLabel = "Bullish"
)

// ValidSentiment reports whether l is one of the three known labels.
func ValidSentiment(l SentimentLabel) bool {
	switch l {
	case SentimentBearish, SentimentNeutral, SentimentBullish:
		return true
	}
	return false
}

// SentimentScore is the transient scoring result attached to a news item
// at ingestion time. It is never persisted on its own.
type SentimentScore struct {
	Label      SentimentLabel `json:"label"`
	Confidence float64        `json:"confidence"` // 0..1
}

// NewsItem is one observed news article. Immutable once persisted;
// (source, url) is the natural key.
type NewsItem struct {
	ID         int64          `json:"id,omitempty"`
	Title      string         `json:"title"`
	URL        string         `json:"url"`
	Source     string         `json:"source"`
	Sentiment  SentimentLabel `json:"sentiment"`
	ObservedAt time.Time      `json:"observed_at"`
	Currency   string         `json:"currency"`
}

// DocID derives a stable index document id from the item's natural key.
func (n *NewsItem) DocID() string {
	sum := sha1.Sum([]byte(n.Source + "|" + n.URL))
	return hex.EncodeToString(sum[:])
}

// SentimentBucket is one slice of the sentiment distribution aggregate.
type SentimentBucket struct {
	Label SentimentLabel `json:"label"`
	Count int64          `json:"count"`
}

// PriceAnalytics holds aggregate price statistics for one symbol.
// Available is false when the analytics backend could not serve the
// aggregation and no relational equivalent exists.
type PriceAnalytics struct {
	Symbol    string  `json:"symbol"`
	Available bool    `json:"available"`
	AvgPrice  float64 `json:"avg_price,omitempty"`
	MinPrice  float64 `json:"min_price,omitempty"`
	MaxPrice  float64 `json:"max_price,omitempty"`
	VolumeSum float64 `json:"volume_sum,omitempty"`
	VolumeAvg float64 `json:"volume_avg,omitempty"`
	Samples   int64   `json:"samples,omitempty"`
}
