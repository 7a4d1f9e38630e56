package models

// Requests for market-data HTTP endpoints. Defined in domain for consistency and reuse.

type PriceRequest struct {
	Symbol     string `param:"symbol" json:"symbol" validate:"required"`
	VsCurrency string `query:"vs_currency" json:"vs_currency" default:"usd" validate:"oneof=usd"`
}

type HistoryRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type NewsSearchRequest struct {
	Query    string `query:"q" json:"q" validate:"required,min=2"`
	Currency string `query:"currency" json:"currency"`
	Limit    int    `query:"limit" json:"limit" default:"25" validate:"gte=1,lte=100"`
}

type SentimentDistributionRequest struct {
	Currency string `query:"currency" json:"currency"`
}

type SentimentRequest struct {
	Text string `json:"text" validate:"required,min=3"`
}

type ForecastRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
	Steps  int    `query:"steps" json:"steps" default:"24" validate:"gte=1,lte=168"`
}
