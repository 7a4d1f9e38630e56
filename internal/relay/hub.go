package relay

import (
	"context"
	"encoding/json"
	"sync"

	"CryptoSouq/internal/domain/models"
	drepo "CryptoSouq/internal/domain/repository"
	"CryptoSouq/pkg/logger"
)

// Subscriber receives marshaled price frames for one symbol. The
// channel is owned by the hub and closed on unsubscribe or when the
// subscriber falls behind.
type Subscriber struct {
	Symbol string
	C      chan []byte
}

// group is the shared state for one symbol: a single upstream stream
// fanned out to every subscriber.
type group struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	cancel context.CancelFunc
	closed bool
}

// Hub multiplexes live price streams. At most one upstream connection
// exists per symbol regardless of subscriber count; the last
// unsubscribe tears the upstream down.
type Hub struct {
	dialer  drepo.StreamDialer
	sink    drepo.FactSink // optional, persists relayed ticks
	metrics drepo.Metrics
	l       *logger.Logger

	mu     sync.Mutex
	groups map[string]*group
}

func NewHub(dialer drepo.StreamDialer, sink drepo.FactSink, metrics drepo.Metrics, l *logger.Logger) *Hub {
	return &Hub{
		dialer:  dialer,
		sink:    sink,
		metrics: metrics,
		l:       l,
		groups:  make(map[string]*group),
	}
}

const subscriberBuffer = 64

// Subscribe validates the symbol, joins (or lazily creates) the
// symbol's fan-out group and returns the subscriber handle.
func (h *Hub) Subscribe(ctx context.Context, symbol string) (*Subscriber, error) {
	pair, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{Symbol: pair, C: make(chan []byte, subscriberBuffer)}

	h.mu.Lock()
	g, ok := h.groups[pair]
	if ok {
		g.mu.Lock()
		if !g.closed {
			g.subs[sub] = struct{}{}
			n := len(g.subs)
			g.mu.Unlock()
			h.mu.Unlock()
			h.metrics.SetRelaySubscribers(pair, n)
			return sub, nil
		}
		g.mu.Unlock()
		// the group lost its upstream, replace it below
	}

	g = &group{subs: map[*Subscriber]struct{}{sub: {}}}
	h.groups[pair] = g
	h.mu.Unlock()

	stream, err := h.dialer.Open(pair)
	if err != nil {
		h.dropGroup(pair, g)
		return nil, err
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	if err := stream.Connect(streamCtx); err != nil {
		cancel()
		h.dropGroup(pair, g)
		return nil, &models.UpstreamFetchError{Source: "binance_ws", Err: err}
	}

	h.metrics.SetRelaySubscribers(pair, 1)
	h.l.Info("relay upstream opened", logger.String("symbol", pair))
	go h.fanOut(streamCtx, pair, g, stream)
	return sub, nil
}

// Unsubscribe removes the subscriber; the last one closes the shared
// upstream.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	g, ok := h.groups[sub.Symbol]
	h.mu.Unlock()
	if !ok {
		return
	}

	g.mu.Lock()
	if _, present := g.subs[sub]; !present {
		g.mu.Unlock()
		return
	}
	delete(g.subs, sub)
	close(sub.C)
	n := len(g.subs)
	last := n == 0
	if last {
		g.closed = true
	}
	g.mu.Unlock()

	h.metrics.SetRelaySubscribers(sub.Symbol, n)
	if last {
		h.teardown(sub.Symbol, g)
	}
}

func (h *Hub) teardown(symbol string, g *group) {
	if g.cancel != nil {
		g.cancel()
	}
	h.mu.Lock()
	if h.groups[symbol] == g {
		delete(h.groups, symbol)
	}
	h.mu.Unlock()
	h.l.Info("relay upstream closed", logger.String("symbol", symbol))
}

func (h *Hub) dropGroup(symbol string, g *group) {
	g.mu.Lock()
	g.closed = true
	for sub := range g.subs {
		delete(g.subs, sub)
		close(sub.C)
	}
	g.mu.Unlock()

	h.mu.Lock()
	if h.groups[symbol] == g {
		delete(h.groups, symbol)
	}
	h.mu.Unlock()
}

// fanOut reads the shared upstream and broadcasts each tick, marshaled
// once, to every subscriber. Slow subscribers are dropped rather than
// stalling the group.
func (h *Hub) fanOut(ctx context.Context, symbol string, g *group, stream drepo.MarketStream) {
	defer stream.Close()

	ticks, errs := stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil {
				h.l.Warn("relay upstream error", logger.String("symbol", symbol), logger.Error(err))
				h.metrics.RecordError("relay_upstream")
				h.dropGroup(symbol, g)
				return
			}
		case tick, ok := <-ticks:
			if !ok {
				h.dropGroup(symbol, g)
				return
			}
			h.broadcast(ctx, symbol, g, tick)
		}
	}
}

func (h *Hub) broadcast(ctx context.Context, symbol string, g *group, tick *models.PriceTick) {
	frame, err := MarshalFrame(tick)
	if err != nil {
		return
	}

	var stale []*Subscriber
	g.mu.Lock()
	for sub := range g.subs {
		select {
		case sub.C <- frame:
		default:
			stale = append(stale, sub)
		}
	}
	g.mu.Unlock()

	for _, sub := range stale {
		h.l.Debug("dropping slow relay subscriber", logger.String("symbol", symbol))
		h.Unsubscribe(sub)
	}

	h.metrics.RecordLastPrice(symbol, tick.Price)
	if h.sink != nil {
		if err := h.sink.SavePriceTick(ctx, tick); err != nil {
			h.l.Warn("relay tick persist failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
}

// MarshalFrame renders the outbound payload: the currency slug keyed
// over its usd price and trade volume.
func MarshalFrame(tick *models.PriceTick) ([]byte, error) {
	slug := models.SlugFor(tick.Symbol)
	if slug == "" {
		slug = tick.Symbol
	}
	return json.Marshal(map[string]map[string]float64{
		slug: {
			"usd":    tick.Price,
			"volume": tick.Volume,
		},
	})
}

// Close tears down every group, closing all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	groups := make(map[string]*group, len(h.groups))
	for s, g := range h.groups {
		groups[s] = g
	}
	h.mu.Unlock()

	for symbol, g := range groups {
		if g.cancel != nil {
			g.cancel()
		}
		h.dropGroup(symbol, g)
	}
}
