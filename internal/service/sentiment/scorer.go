package sentiment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"CryptoSouq/internal/domain/models"

	"github.com/go-resty/resty/v2"
)

// Scorer classifies a piece of text as Bearish, Neutral or Bullish.
type Scorer interface {
	Score(ctx context.Context, text string) (models.SentimentScore, error)
}

var bullishWords = map[string]struct{}{
	"surge": {}, "rally": {}, "soar": {}, "soars": {}, "gain": {}, "gains": {},
	"bull": {}, "bullish": {}, "breakout": {}, "record": {}, "high": {},
	"adoption": {}, "approve": {}, "approved": {}, "approval": {}, "up": {},
	"rise": {}, "rises": {}, "rising": {}, "jump": {}, "jumps": {}, "moon": {},
	"profit": {}, "win": {}, "wins": {}, "growth": {}, "upgrade": {},
}

var bearishWords = map[string]struct{}{
	"crash": {}, "plunge": {}, "plunges": {}, "dump": {}, "drop": {}, "drops": {},
	"bear": {}, "bearish": {}, "selloff": {}, "sell-off": {}, "down": {},
	"fall": {}, "falls": {}, "falling": {}, "low": {}, "loss": {}, "losses": {},
	"hack": {}, "hacked": {}, "exploit": {}, "ban": {}, "banned": {}, "fraud": {},
	"lawsuit": {}, "fear": {}, "liquidation": {}, "downgrade": {}, "scam": {},
}

// LexiconScorer scores text by counting bullish and bearish keywords.
// It never fails, making it the default fallback mode.
type LexiconScorer struct{}

func NewLexiconScorer() *LexiconScorer { return &LexiconScorer{} }

func (s *LexiconScorer) Score(_ context.Context, text string) (models.SentimentScore, error) {
	var bull, bear int
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?:;\"'()[]")
		if _, ok := bullishWords[w]; ok {
			bull++
		}
		if _, ok := bearishWords[w]; ok {
			bear++
		}
	}
	total := bull + bear
	if total == 0 {
		return models.SentimentScore{Label: models.SentimentNeutral, Confidence: 0.5}, nil
	}
	switch {
	case bull > bear:
		return models.SentimentScore{Label: models.SentimentBullish, Confidence: confidence(bull, total)}, nil
	case bear > bull:
		return models.SentimentScore{Label: models.SentimentBearish, Confidence: confidence(bear, total)}, nil
	default:
		return models.SentimentScore{Label: models.SentimentNeutral, Confidence: 0.5}, nil
	}
}

func confidence(hits, total int) float64 {
	c := float64(hits) / float64(total)
	if c > 0.99 {
		c = 0.99
	}
	return c
}

// HTTPScorer delegates scoring to an external model endpoint. On any
// transport failure it falls back to the lexicon.
type HTTPScorer struct {
	http     *resty.Client
	fallback *LexiconScorer
}

type scoreRequest struct {
	Text string `json:"text"`
}

type scoreResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func NewHTTPScorer(url string, timeout time.Duration) *HTTPScorer {
	return &HTTPScorer{
		http:     resty.New().SetBaseURL(url).SetTimeout(timeout),
		fallback: NewLexiconScorer(),
	}
}

func (s *HTTPScorer) Score(ctx context.Context, text string) (models.SentimentScore, error) {
	var out scoreResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(scoreRequest{Text: text}).
		SetResult(&out).
		Post("")
	if err != nil || resp.StatusCode() != 200 {
		return s.fallback.Score(ctx, text)
	}
	label := models.SentimentLabel(out.Label)
	if !models.ValidSentiment(label) {
		return models.SentimentScore{}, fmt.Errorf("sentiment: unknown label %q", out.Label)
	}
	return models.SentimentScore{Label: label, Confidence: out.Confidence}, nil
}
