package api

import (
	"errors"
	"net/http"
	"time"

	"CryptoSouq/internal/domain/models"
	drepo "CryptoSouq/internal/domain/repository"
	"CryptoSouq/internal/service/sentiment"
	"CryptoSouq/internal/usecase"
	xhttp "CryptoSouq/pkg/http"
	xlogger "CryptoSouq/pkg/logger"
	"CryptoSouq/pkg/util"

	"github.com/labstack/echo/v4"
)

// MarketHandler serves the market-data REST API.
type MarketHandler struct {
	logger *xlogger.Logger
	router *usecase.QueryRouter
	engine *usecase.ForecastEngine
	scorer sentiment.Scorer
	store  drepo.FactStore
	index  drepo.SearchIndex
}

func NewMarketHandler(logger *xlogger.Logger, router *usecase.QueryRouter, engine *usecase.ForecastEngine, scorer sentiment.Scorer, store drepo.FactStore, index drepo.SearchIndex) *MarketHandler {
	return &MarketHandler{logger: logger, router: router, engine: engine, scorer: scorer, store: store, index: index}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/price/:symbol", h.Price)
	g.GET("/price/:symbol/history", h.History)
	g.GET("/price/:symbol/analytics", h.Analytics)
	g.GET("/news/search", h.SearchNews)
	g.GET("/sentiment/distribution", h.SentimentDistribution)
	g.POST("/sentiment", h.ScoreSentiment)
	g.GET("/forecast/:symbol", h.Forecast)
}

func (h *MarketHandler) Price(c echo.Context) error {
	req := &models.PriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	tick, err := h.router.LatestPrice(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("price usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	if tick == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no price observed yet"))
	}
	slug := models.SlugFor(tick.Symbol)
	return xhttp.SuccessResponse(c, map[string]map[string]float64{
		slug: {"usd": tick.Price, "volume": tick.Volume},
	})
}

func (h *MarketHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	now := time.Now().UTC()
	from := util.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := util.ParseTimeDefault(req.To, now)

	ticks, err := h.router.PriceHistory(c.Request().Context(), req.Symbol, from, to, req.Limit)
	if err != nil {
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.ListResponse(c, ticks, int64(len(ticks)))
}

func (h *MarketHandler) Analytics(c echo.Context) error {
	req := &models.PriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	a, err := h.router.PriceAnalytics(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("analytics usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, a)
}

func (h *MarketHandler) SearchNews(c echo.Context) error {
	req := &models.NewsSearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	items, err := h.router.SearchNews(c.Request().Context(), req.Query, req.Currency, req.Limit)
	if err != nil {
		h.logger.Error("news search usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.ListResponse(c, items, int64(len(items)))
}

func (h *MarketHandler) SentimentDistribution(c echo.Context) error {
	req := &models.SentimentDistributionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	buckets, err := h.router.SentimentDistribution(c.Request().Context(), req.Currency)
	if err != nil {
		h.logger.Error("sentiment distribution usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, buckets)
}

func (h *MarketHandler) ScoreSentiment(c echo.Context) error {
	req := &models.SentimentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	score, err := h.scorer.Score(c.Request().Context(), req.Text)
	if err != nil {
		h.logger.Error("sentiment scoring error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, score)
}

func (h *MarketHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.engine.Forecast(c.Request().Context(), req.Symbol, req.Steps)
	if err != nil {
		h.logger.Error("forecast usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// Health reports the durable store as mandatory and the index as
// informational: a down index degrades reads, it does not fail them.
func (h *MarketHandler) Health(c echo.Context) error {
	ctx := c.Request().Context()
	status := map[string]string{"store": "up", "index": "up"}

	if err := h.store.Health(ctx); err != nil {
		status["store"] = "down"
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	if err := h.index.Health(ctx); err != nil {
		status["index"] = "down"
	}
	return xhttp.SuccessResponse(c, status)
}

// mapDomainError translates the domain error taxonomy to transport
// errors.
func mapDomainError(err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return xhttp.BadRequestError(verr.Error())
	}
	var herr *models.InsufficientHistoryError
	if errors.As(err, &herr) {
		return xhttp.UnprocessableError(herr.Error())
	}
	var uerr *models.UpstreamFetchError
	if errors.As(err, &uerr) {
		return xhttp.BadGatewayError(uerr.Error())
	}
	var ierr *models.IndexUnavailableError
	if errors.As(err, &ierr) {
		return xhttp.BadGatewayError(ierr.Error())
	}
	var derr *models.DurabilityError
	if errors.As(err, &derr) {
		return xhttp.InternalError("storage failure")
	}
	return xhttp.InternalError("internal error")
}
