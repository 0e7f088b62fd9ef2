package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the settlement counters exposed on /metrics.
type Metrics struct {
	Settlements        *prometheus.CounterVec
	SettlementLatency  *prometheus.HistogramVec
	SettlementRetries  prometheus.Counter
	EventPublishErrors prometheus.Counter
	OffersCreated      *prometheus.CounterVec
	OffersCancelled    prometheus.Counter
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		Settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "p2p_settlements_total",
				Help: "Offer acceptances by payment kind and outcome code.",
			},
			[]string{"kind", "outcome"},
		),
		SettlementLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "p2p_settlement_duration_seconds",
				Help:    "Wall time of an offer acceptance including retries.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		SettlementRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "p2p_settlement_retries_total",
				Help: "Settlement transactions retried after a conflict or invariant failure.",
			},
		),
		EventPublishErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "p2p_trade_event_publish_errors_total",
				Help: "Trade events that could not be delivered after commit.",
			},
		),
		OffersCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "p2p_offers_created_total",
				Help: "Offers created by base/quote pair.",
			},
			[]string{"pair"},
		),
		OffersCancelled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "p2p_offers_cancelled_total",
				Help: "Offers withdrawn by their seller.",
			},
		),
	}

	registry.MustRegister(
		m.Settlements, m.SettlementLatency, m.SettlementRetries,
		m.EventPublishErrors, m.OffersCreated, m.OffersCancelled,
	)
	return m
}

func (m *Metrics) ObserveSettlement(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(kind, outcome).Inc()
	m.SettlementLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.SettlementRetries.Inc()
}

func (m *Metrics) IncPublishError() {
	if m == nil {
		return
	}
	m.EventPublishErrors.Inc()
}

func (m *Metrics) IncOfferCreated(base, quote string) {
	if m == nil {
		return
	}
	m.OffersCreated.WithLabelValues(base + "/" + quote).Inc()
}

func (m *Metrics) IncOfferCancelled() {
	if m == nil {
		return
	}
	m.OffersCancelled.Inc()
}
