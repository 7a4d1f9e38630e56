package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"CryptoSouq/internal/domain/models"
	drepo "CryptoSouq/internal/domain/repository"
	"CryptoSouq/pkg/logger"
)

type fakeStream struct {
	mu       sync.Mutex
	ticks    chan *models.PriceTick
	errs     chan error
	closed   bool
	connects int
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		ticks: make(chan *models.PriceTick, 16),
		errs:  make(chan error, 1),
	}
}

func (s *fakeStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	return nil
}

func (s *fakeStream) Read(context.Context) (<-chan *models.PriceTick, <-chan error) {
	return s.ticks, s.errs
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeDialer struct {
	mu      sync.Mutex
	streams []*fakeStream
}

func (d *fakeDialer) Open(symbol string) (drepo.MarketStream, error) {
	if _, err := models.NormalizeSymbol(symbol); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s := newFakeStream()
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDialer) opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

func (d *fakeDialer) stream(i int) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[i]
}

type nopMetrics struct{}

func (nopMetrics) RecordFactPersisted(string, string) {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordFallback(string)              {}
func (nopMetrics) RecordLastPrice(string, float64)    {}
func (nopMetrics) RecordLatency(string, float64)      {}
func (nopMetrics) SetRelaySubscribers(string, int)    {}

func newTestHub(d *fakeDialer) *Hub {
	return NewHub(d, nil, nopMetrics{}, logger.Nop())
}

func TestSubscribeRejectsUnknownSymbol(t *testing.T) {
	h := newTestHub(&fakeDialer{})
	if _, err := h.Subscribe(context.Background(), "NOPEUSDT"); err == nil {
		t.Fatalf("expected error for unknown symbol")
	}
}

func TestSubscribersShareOneUpstream(t *testing.T) {
	d := &fakeDialer{}
	h := newTestHub(d)

	a, err := h.Subscribe(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	b, err := h.Subscribe(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("subscribe b: %v", err)
	}
	if d.opened() != 1 {
		t.Fatalf("expected one shared upstream, got %d", d.opened())
	}

	d.stream(0).ticks <- &models.PriceTick{Symbol: "BTCUSDT", Price: 65000, Volume: 0.5, ObservedAt: time.Now()}

	for _, sub := range []*Subscriber{a, b} {
		select {
		case frame := <-sub.C:
			var payload map[string]map[string]float64
			if err := json.Unmarshal(frame, &payload); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			if payload["bitcoin"]["usd"] != 65000 {
				t.Fatalf("unexpected frame %s", frame)
			}
			if payload["bitcoin"]["volume"] != 0.5 {
				t.Fatalf("unexpected volume in frame %s", frame)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive the tick")
		}
	}

	h.Unsubscribe(a)
	if d.stream(0).isClosed() {
		t.Fatalf("upstream must survive while a subscriber remains")
	}
	h.Unsubscribe(b)

	deadline := time.After(time.Second)
	for !d.stream(0).isClosed() {
		select {
		case <-deadline:
			t.Fatalf("last unsubscribe did not close the upstream")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestDistinctSymbolsGetDistinctUpstreams(t *testing.T) {
	d := &fakeDialer{}
	h := newTestHub(d)

	if _, err := h.Subscribe(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := h.Subscribe(context.Background(), "ETHUSDT"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if d.opened() != 2 {
		t.Fatalf("expected two upstreams, got %d", d.opened())
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	d := &fakeDialer{}
	h := newTestHub(d)

	slow, err := h.Subscribe(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Never drain; overflow the buffer plus a trailing tick.
	for i := 0; i < subscriberBuffer+5; i++ {
		d.stream(0).ticks <- &models.PriceTick{Symbol: "BTCUSDT", Price: float64(i + 1), Volume: 1, ObservedAt: time.Now()}
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-slow.C:
			if !ok {
				return // dropped: channel closed
			}
		case <-deadline:
			t.Fatalf("slow subscriber was never dropped")
		}
	}
}

func TestUpstreamErrorClosesGroup(t *testing.T) {
	d := &fakeDialer{}
	h := newTestHub(d)

	sub, err := h.Subscribe(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	d.stream(0).errs <- context.DeadlineExceeded

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Fatalf("expected closed channel after upstream error")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber channel not closed after upstream error")
	}

	// A fresh subscribe opens a new upstream.
	if _, err := h.Subscribe(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if d.opened() != 2 {
		t.Fatalf("expected a new upstream, got %d", d.opened())
	}
}
