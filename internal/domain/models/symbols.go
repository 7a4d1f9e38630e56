package models

import (
	"sort"
	"strings"
)

// symbolTable maps each supported trading pair to its currency slug.
// All components validate symbols against this table at the boundary.
var symbolTable = map[string]string{
	"BTCUSDT":  "bitcoin",
	"ETHUSDT":  "ethereum",
	"XRPUSDT":  "ripple",
	"DOGEUSDT": "dogecoin",
	"SOLUSDT":  "solana",
}

var slugToSymbol = func() map[string]string {
	m := make(map[string]string, len(symbolTable))
	for sym, slug := range symbolTable {
		m[slug] = sym
	}
	return m
}()

// NormalizeSymbol accepts a trading pair ("BTCUSDT") or a currency slug
// ("bitcoin") in any case and returns the canonical pair. Unknown input
// yields a *ValidationError.
func NormalizeSymbol(s string) (string, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	if _, ok := symbolTable[up]; ok {
		return up, nil
	}
	if sym, ok := slugToSymbol[strings.ToLower(strings.TrimSpace(s))]; ok {
		return sym, nil
	}
	return "", &ValidationError{Field: "symbol", Reason: "unknown symbol " + s}
}

// SlugFor returns the currency slug for a canonical pair, or "".
func SlugFor(symbol string) string {
	return symbolTable[symbol]
}

// CurrencyCode returns the short currency code for a canonical pair
// (BTCUSDT -> BTC).
func CurrencyCode(symbol string) string {
	return strings.TrimSuffix(symbol, "USDT")
}

// Symbols returns all supported pairs in stable order.
func Symbols() []string {
	out := make([]string, 0, len(symbolTable))
	for sym := range symbolTable {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
