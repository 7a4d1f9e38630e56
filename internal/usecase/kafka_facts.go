package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"CryptoSouq/internal/domain/models"
	drepo "CryptoSouq/internal/domain/repository"
	pkgkafka "CryptoSouq/pkg/kafka"
)

// factEnvelope is the wire shape on the facts topic.
type factEnvelope struct {
	Kind string            `json:"kind"` // price or news
	Tick *models.PriceTick `json:"tick,omitempty"`
	News *models.NewsItem  `json:"news,omitempty"`
}

// KafkaFactSink publishes observed facts to the facts topic instead of
// persisting them directly. The consumer side owns persistence, so the
// pollers and the relay stay unaware of the backend mode.
type KafkaFactSink struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaFactSink(producer *pkgkafka.Producer, topic string) *KafkaFactSink {
	return &KafkaFactSink{producer: producer, topic: topic}
}

func (s *KafkaFactSink) SavePriceTick(ctx context.Context, t *models.PriceTick) error {
	pair, err := models.NormalizeSymbol(t.Symbol)
	if err != nil {
		return err
	}
	t.Symbol = pair
	return s.producer.Publish(ctx, s.topic, []byte(pair), factEnvelope{Kind: "price", Tick: t})
}

func (s *KafkaFactSink) SaveNewsItem(ctx context.Context, n *models.NewsItem) error {
	return s.producer.Publish(ctx, s.topic, []byte(n.DocID()), factEnvelope{Kind: "news", News: n})
}

func (s *KafkaFactSink) Close() error {
	return s.producer.Close()
}

// FactsHandler consumes the facts topic and persists through the
// ingestor. Validation errors are terminal and dropped, anything else
// is retried by the consumer.
type FactsHandler struct {
	topic string
	sink  drepo.FactSink
}

func NewFactsHandler(topic string, sink drepo.FactSink) *FactsHandler {
	return &FactsHandler{topic: topic, sink: sink}
}

func (h *FactsHandler) Topic() string { return h.topic }

func (h *FactsHandler) Handle(ctx context.Context, raw []byte) error {
	var env factEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("facts: decode: %w", err)
	}
	switch env.Kind {
	case "price":
		if env.Tick == nil {
			return fmt.Errorf("facts: price envelope without tick")
		}
		return dropValidation(h.sink.SavePriceTick(ctx, env.Tick))
	case "news":
		if env.News == nil {
			return fmt.Errorf("facts: news envelope without item")
		}
		return dropValidation(h.sink.SaveNewsItem(ctx, env.News))
	default:
		return fmt.Errorf("facts: unknown kind %q", env.Kind)
	}
}

// dropValidation keeps malformed facts from looping through the retry
// path: a fact that failed validation once will fail forever.
func dropValidation(err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return nil
	}
	return err
}
