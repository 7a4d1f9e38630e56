package sentiment

import (
	"context"
	"testing"

	"CryptoSouq/internal/domain/models"
)

func TestLexiconScorerBullish(t *testing.T) {
	s := NewLexiconScorer()
	got, err := s.Score(context.Background(), "Bitcoin ETF approval sparks rally, prices surge to record high")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Label != models.SentimentBullish {
		t.Fatalf("expected Bullish, got %s", got.Label)
	}
	if got.Confidence <= 0.5 {
		t.Fatalf("expected confidence above 0.5, got %v", got.Confidence)
	}
}

func TestLexiconScorerBearish(t *testing.T) {
	s := NewLexiconScorer()
	got, err := s.Score(context.Background(), "Exchange hacked, token prices crash amid massive selloff")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Label != models.SentimentBearish {
		t.Fatalf("expected Bearish, got %s", got.Label)
	}
}

func TestLexiconScorerNeutralOnNoSignal(t *testing.T) {
	s := NewLexiconScorer()
	got, err := s.Score(context.Background(), "Weekly market roundup and protocol update notes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Label != models.SentimentNeutral {
		t.Fatalf("expected Neutral, got %s", got.Label)
	}
	if got.Confidence != 0.5 {
		t.Fatalf("expected 0.5 confidence, got %v", got.Confidence)
	}
}

func TestLexiconScorerNeutralOnTie(t *testing.T) {
	s := NewLexiconScorer()
	got, err := s.Score(context.Background(), "prices rally then crash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Label != models.SentimentNeutral {
		t.Fatalf("expected Neutral on tie, got %s", got.Label)
	}
}
