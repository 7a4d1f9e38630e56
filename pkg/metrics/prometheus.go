package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	factsPersisted   *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	fallbacksTotal   *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
	relaySubscribers *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		factsPersisted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptosouq_facts_persisted_total",
				Help: "Total number of facts written to the durable store",
			},
			[]string{"kind", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptosouq_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		fallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptosouq_index_fallbacks_total",
				Help: "Read queries answered by the relational store after an index failure",
			},
			[]string{"op"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptosouq_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptosouq_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		relaySubscribers: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptosouq_relay_subscribers",
				Help: "Current live-relay subscribers per symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordFactPersisted records a fact written to the durable store.
func (r *Recorder) RecordFactPersisted(kind, symbol string) {
	r.factsPersisted.WithLabelValues(kind, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordFallback records a read answered by the relational fallback.
func (r *Recorder) RecordFallback(op string) {
	r.fallbacksTotal.WithLabelValues(op).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetRelaySubscribers records the current fan-out size for a symbol.
func (r *Recorder) SetRelaySubscribers(symbol string, n int) {
	r.relaySubscribers.WithLabelValues(symbol).Set(float64(n))
}
