package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	GateDecisions *prometheus.CounterVec
	ProxyRequests *prometheus.CounterVec
	ProxyDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotelgate_gate_decisions_total",
				Help: "Access gate decisions by area, final state and reason",
			},
			[]string{"area", "state", "reason"},
		),
		ProxyRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotelgate_proxy_requests_total",
				Help: "Proxied API requests by route and relayed status",
			},
			[]string{"route", "status"},
		),
		ProxyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hotelgate_proxy_duration_seconds",
				Help:    "Round trip to the backend for proxied API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		gatherer: reg,
	}
}

func (m *Metrics) ObserveGateDecision(area, state, reason string) {
	m.GateDecisions.WithLabelValues(area, state, reason).Inc()
}

func (m *Metrics) ObserveProxy(route, status string, d time.Duration) {
	m.ProxyRequests.WithLabelValues(route, status).Inc()
	m.ProxyDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
