package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"CryptoSouq/internal/domain/models"
	drepo "CryptoSouq/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Dialer opens one trade stream per symbol against the Binance
// WebSocket endpoint.
type Dialer struct {
	wsURL        string
	pingInterval time.Duration
}

func NewDialer(wsURL string, pingInterval time.Duration) *Dialer {
	return &Dialer{wsURL: wsURL, pingInterval: pingInterval}
}

func (d *Dialer) Open(symbol string) (drepo.MarketStream, error) {
	pair, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return &Stream{
		url:          fmt.Sprintf("%s/%s@trade", d.wsURL, strings.ToLower(pair)),
		symbol:       pair,
		pingInterval: d.pingInterval,
	}, nil
}

// Stream is a live trade subscription for a single symbol.
type Stream struct {
	url          string
	symbol       string
	pingInterval time.Duration

	conn *websocket.Conn
}

type tradeEvent struct {
	EventType string `json:"e"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"` // ms
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return &models.UpstreamFetchError{Source: restSource, Err: fmt.Errorf("dial %s: %w", s.url, err)}
	}
	s.conn = conn
	return nil
}

// Read streams validated trade ticks and errors. Malformed or non-trade
// frames are dropped; ticks are dropped on backpressure rather than
// stalling the read loop.
func (s *Stream) Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error) {
	ticks := make(chan *models.PriceTick, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("stream %s: not connected", s.symbol)
					return
				}
				_, b, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("stream %s: read: %w", s.symbol, err)
					return
				}
				tick, ok := parseTrade(s.symbol, b)
				if !ok {
					continue
				}
				select {
				case ticks <- tick:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errs
}

func parseTrade(symbol string, b []byte) (*models.PriceTick, bool) {
	var ev tradeEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, false
	}
	if ev.EventType != "trade" {
		return nil, false
	}
	price, err := parsePositiveFloat(ev.Price)
	if err != nil {
		return nil, false
	}
	qty, err := parsePositiveFloat(ev.Quantity)
	if err != nil {
		return nil, false
	}
	at := time.UnixMilli(ev.TradeTime).UTC()
	if ev.TradeTime <= 0 {
		at = time.Now().UTC()
	}
	return &models.PriceTick{Symbol: symbol, Price: price, Volume: qty, ObservedAt: at}, true
}

func parsePositiveFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("non-positive value %q", s)
	}
	return v, nil
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
