package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"CryptoSouq/internal/domain/models"
	drepo "CryptoSouq/internal/domain/repository"
	"CryptoSouq/internal/relay"
	xlogger "CryptoSouq/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type stubStream struct {
	ticks chan *models.PriceTick
	errs  chan error
}

func (s *stubStream) Connect(context.Context) error { return nil }
func (s *stubStream) Read(context.Context) (<-chan *models.PriceTick, <-chan error) {
	return s.ticks, s.errs
}
func (s *stubStream) Close() error { return nil }

type stubDialer struct {
	mu      sync.Mutex
	streams []*stubStream
}

func (d *stubDialer) Open(symbol string) (drepo.MarketStream, error) {
	if _, err := models.NormalizeSymbol(symbol); err != nil {
		return nil, err
	}
	s := &stubStream{ticks: make(chan *models.PriceTick, 4), errs: make(chan error, 1)}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *stubDialer) opened() []*stubStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*stubStream(nil), d.streams...)
}

type stubMetrics struct{}

func (stubMetrics) RecordFactPersisted(string, string) {}
func (stubMetrics) RecordError(string)                 {}
func (stubMetrics) RecordFallback(string)              {}
func (stubMetrics) RecordLastPrice(string, float64)    {}
func (stubMetrics) RecordLatency(string, float64)      {}
func (stubMetrics) SetRelaySubscribers(string, int)    {}

func newWSServer(t *testing.T, d *stubDialer) *httptest.Server {
	t.Helper()
	hub := relay.NewHub(d, nil, stubMetrics{}, xlogger.Nop())
	h := NewRelayHandler(xlogger.Nop(), hub)
	e := echo.New()
	h.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)
	return srv
}

func wsURL(srv *httptest.Server, symbol string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/price/" + symbol
}

func TestStreamClosesWithPolicyViolationOnUnknownSymbol(t *testing.T) {
	srv := newWSServer(t, &stubDialer{})

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "NOPEUSDT"), nil)
	if err != nil {
		t.Fatalf("handshake must succeed before the close frame: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var cerr *websocket.CloseError
	if !websocketCloseAs(err, &cerr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if cerr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("expected close code %d, got %d", websocket.ClosePolicyViolation, cerr.Code)
	}
}

func TestStreamRelaysTickFrames(t *testing.T) {
	d := &stubDialer{}
	srv := newWSServer(t, d)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "BTCUSDT"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for len(d.opened()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("upstream never opened")
		}
		time.Sleep(5 * time.Millisecond)
	}
	d.opened()[0].ticks <- &models.PriceTick{Symbol: "BTCUSDT", Price: 65000, Volume: 0.5, ObservedAt: time.Now()}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(frame), `"bitcoin"`) || !strings.Contains(string(frame), "65000") {
		t.Fatalf("unexpected frame %s", frame)
	}
}

func websocketCloseAs(err error, target **websocket.CloseError) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*websocket.CloseError); ok {
		*target = ce
		return true
	}
	return false
}
