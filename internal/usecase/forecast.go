package usecase

import (
	"context"
	"strconv"
	"sync"
	"time"

	"CryptoSouq/internal/domain/models"
	drepo "CryptoSouq/internal/domain/repository"
	"CryptoSouq/internal/service/cache"
	"CryptoSouq/internal/service/forecast"
	"CryptoSouq/pkg/logger"
)

// ForecastConfig bounds the model's data appetite.
type ForecastConfig struct {
	Lookback        int
	MinObservations int
	TrainWindow     int
	RetrainAfter    time.Duration
	CacheTTL        time.Duration
}

type predictor struct {
	mu        sync.Mutex
	model     forecast.Model
	trainedAt time.Time
}

// ForecastEngine produces price forecasts from stored history. Models
// are per symbol, trained on first use and refreshed after
// RetrainAfter; results are cached per (symbol, steps).
type ForecastEngine struct {
	store   drepo.FactStore
	cfg     ForecastConfig
	results *cache.TTLCache
	metrics drepo.Metrics
	l       *logger.Logger

	newModel func(lookback int) forecast.Model

	mu         sync.Mutex
	predictors map[string]*predictor
}

func NewForecastEngine(store drepo.FactStore, cfg ForecastConfig, metrics drepo.Metrics, l *logger.Logger) *ForecastEngine {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 60
	}
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = cfg.Lookback + 24
	}
	if cfg.TrainWindow <= 0 {
		cfg.TrainWindow = 1000
	}
	if cfg.RetrainAfter <= 0 {
		cfg.RetrainAfter = time.Hour
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &ForecastEngine{
		store:      store,
		cfg:        cfg,
		results:    cache.NewTTLCache(),
		metrics:    metrics,
		l:          l,
		newModel:   func(lookback int) forecast.Model { return forecast.NewARModel(lookback) },
		predictors: make(map[string]*predictor),
	}
}

// Forecast predicts `steps` future prices for a symbol. Training is
// synchronous on the first call per symbol; concurrent callers for the
// same symbol serialize on the predictor, not on the engine.
func (e *ForecastEngine) Forecast(ctx context.Context, symbol string, steps int) (*models.ForecastResult, error) {
	pair, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if steps <= 0 {
		return nil, &models.ValidationError{Field: "steps", Reason: "must be positive"}
	}

	cacheKey := forecastCacheKey(pair, steps)
	if v, ok := e.results.Get(cacheKey); ok {
		if res, ok2 := v.(*models.ForecastResult); ok2 {
			return res, nil
		}
	}

	ticks, err := e.store.LatestPrices(ctx, pair, e.cfg.TrainWindow)
	if err != nil {
		return nil, err
	}
	if len(ticks) < e.cfg.MinObservations {
		return nil, &models.InsufficientHistoryError{Symbol: pair, Have: len(ticks), Need: e.cfg.MinObservations}
	}

	// LatestPrices is newest-first; the model wants chronological order.
	prices := make([]float64, len(ticks))
	for i, t := range ticks {
		prices[len(ticks)-1-i] = t.Price
	}

	p := e.predictorFor(pair)
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model == nil || time.Since(p.trainedAt) > e.cfg.RetrainAfter {
		start := time.Now()
		m := e.newModel(e.cfg.Lookback)
		if err := m.Fit(prices); err != nil {
			return nil, err
		}
		p.model = m
		p.trainedAt = time.Now()
		e.metrics.RecordLatency("forecast_train", time.Since(start).Seconds())
		e.l.Info("forecast model trained",
			logger.String("symbol", pair),
			logger.Int("observations", len(prices)),
		)
	}

	window := prices
	if len(window) > e.cfg.Lookback {
		window = window[len(window)-e.cfg.Lookback:]
	}
	predicted, err := p.model.Predict(window, steps)
	if err != nil {
		return nil, err
	}

	res := &models.ForecastResult{
		Symbol:       pair,
		GeneratedAt:  time.Now().UTC(),
		HorizonSteps: steps,
		Predicted:    predicted,
		BasePrice:    prices[len(prices)-1],
	}
	e.results.Set(cacheKey, res, e.cfg.CacheTTL)
	return res, nil
}

func (e *ForecastEngine) predictorFor(symbol string) *predictor {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.predictors[symbol]
	if !ok {
		p = &predictor{}
		e.predictors[symbol] = p
	}
	return p
}

func forecastCacheKey(symbol string, steps int) string {
	return "forecast:" + symbol + ":" + strconv.Itoa(steps)
}
