package models

import "time"

// ForecastResult is a multi-step price forecast for one symbol.
// Recomputed on demand; not durable.
type ForecastResult struct {
	Symbol       string    `json:"symbol"`
	GeneratedAt  time.Time `json:"generated_at"`
	HorizonSteps int       `json:"horizon_steps"`
	Predicted    []float64 `json:"predicted"`
	BasePrice    float64   `json:"base_price"`
}
