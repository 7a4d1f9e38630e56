package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"CryptoSouq/internal/domain/models"
	"CryptoSouq/internal/service/ratelimit"
	"CryptoSouq/pkg/logger"

	"github.com/go-resty/resty/v2"
)

const restSource = "binance"

// RestClient pulls 24h ticker snapshots from the Binance REST API.
type RestClient struct {
	http    *resty.Client
	limiter *ratelimit.Interval
	log     *logger.Logger
}

type tickerResponse struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	Volume    string `json:"volume"`
}

func NewRestClient(baseURL string, timeout time.Duration, limiter *ratelimit.Interval, log *logger.Logger) *RestClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "CryptoSouq/1.0")
	return &RestClient{http: c, limiter: limiter, log: log}
}

// FetchTicker returns the current price and 24h volume for the given
// trading pair. The rate-limit window only advances on success.
func (c *RestClient) FetchTicker(ctx context.Context, symbol string) (*models.PriceTick, error) {
	pair, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx, restSource); err != nil {
		return nil, err
	}

	var ticker tickerResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", pair).
		SetResult(&ticker).
		Get("/ticker/24hr")
	if err != nil {
		return nil, &models.UpstreamFetchError{Source: restSource, Err: err}
	}
	if resp.StatusCode() != 200 {
		return nil, &models.UpstreamFetchError{
			Source: restSource,
			Err:    fmt.Errorf("ticker %s: status %d", pair, resp.StatusCode()),
		}
	}

	price, err := strconv.ParseFloat(ticker.LastPrice, 64)
	if err != nil {
		return nil, &models.UpstreamFetchError{Source: restSource, Err: fmt.Errorf("parse lastPrice %q: %w", ticker.LastPrice, err)}
	}
	volume, err := strconv.ParseFloat(ticker.Volume, 64)
	if err != nil {
		return nil, &models.UpstreamFetchError{Source: restSource, Err: fmt.Errorf("parse volume %q: %w", ticker.Volume, err)}
	}

	c.limiter.Advance(restSource)
	return &models.PriceTick{
		Symbol:     pair,
		Price:      price,
		Volume:     volume,
		ObservedAt: time.Now().UTC(),
	}, nil
}
