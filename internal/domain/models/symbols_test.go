package models

import (
	"errors"
	"testing"
)

func TestNormalizeSymbol(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"BTCUSDT", "BTCUSDT"},
		{"btcusdt", "BTCUSDT"},
		{"bitcoin", "BTCUSDT"},
		{"Bitcoin", "BTCUSDT"},
		{" solana ", "SOLUSDT"},
		{"DOGEUSDT", "DOGEUSDT"},
	}
	for _, tc := range cases {
		got, err := NormalizeSymbol(tc.in)
		if err != nil {
			t.Fatalf("NormalizeSymbol(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeSymbol(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeSymbolRejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "NOPEUSDT", "gold", "BTC"} {
		_, err := NormalizeSymbol(in)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("NormalizeSymbol(%q): expected ValidationError, got %v", in, err)
		}
	}
}

func TestSlugAndCurrency(t *testing.T) {
	if SlugFor("ETHUSDT") != "ethereum" {
		t.Fatalf("unexpected slug %q", SlugFor("ETHUSDT"))
	}
	if CurrencyCode("XRPUSDT") != "XRP" {
		t.Fatalf("unexpected currency %q", CurrencyCode("XRPUSDT"))
	}
}

func TestSymbolsStableOrder(t *testing.T) {
	a := Symbols()
	b := Symbols()
	if len(a) != 5 {
		t.Fatalf("expected 5 symbols, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Symbols() order not stable")
		}
	}
}

func TestPriceTickDocIDIsDeterministic(t *testing.T) {
	a := PriceTick{Symbol: "BTCUSDT"}
	b := PriceTick{Symbol: "BTCUSDT"}
	if a.DocID() != b.DocID() {
		t.Fatalf("same identity must yield same doc id")
	}
}

func TestNewsItemDocIDUsesNaturalKey(t *testing.T) {
	a := NewsItem{Source: "s", URL: "u", Title: "first fetch"}
	b := NewsItem{Source: "s", URL: "u", Title: "second fetch"}
	if a.DocID() != b.DocID() {
		t.Fatalf("doc id must depend only on (source, url)")
	}
	c := NewsItem{Source: "s2", URL: "u"}
	if a.DocID() == c.DocID() {
		t.Fatalf("different sources must yield different doc ids")
	}
}
