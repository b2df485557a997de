// Package metrics exposes Prometheus collectors for the widget host.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/store"
)

const namespace = "widgetsync"

// Outcomes recorded for inbound events and cache writes.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeNoHandler = "no_handler"
)

// Metrics holds the collectors of one host, registered on a private
// registry so tests and multiple hosts do not collide.
type Metrics struct {
	registry *prometheus.Registry

	inbound     *prometheus.CounterVec
	outbound    *prometheus.CounterVec
	clients     prometheus.Gauge
	cacheWrites *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		inbound: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Inbound channel events by suffix and outcome.",
		}, []string{"suffix", "outcome"}),
		outbound: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_events_total",
			Help:      "Outbound channel events by suffix.",
		}, []string{"suffix"}),
		clients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "socket_clients",
			Help:      "Connected upstream socket clients.",
		}),
		cacheWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Widget cache writes by outcome.",
		}, []string{"outcome"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// suffixLabel keeps label cardinality bounded by dropping the widget id.
func suffixLabel(name string) string {
	if _, suffix, ok := channel.ParseEventName(name); ok {
		return suffix
	}
	return name
}

func (m *Metrics) InboundEvent(name, outcome string) {
	if m == nil {
		return
	}
	m.inbound.WithLabelValues(suffixLabel(name), outcome).Inc()
}

func (m *Metrics) OutboundEvent(name string) {
	if m == nil {
		return
	}
	m.outbound.WithLabelValues(suffixLabel(name)).Inc()
}

func (m *Metrics) ClientConnected() {
	if m != nil {
		m.clients.Inc()
	}
}

func (m *Metrics) ClientDisconnected() {
	if m != nil {
		m.clients.Dec()
	}
}

// InstrumentStore counts the writes made through s.
func (m *Metrics) InstrumentStore(s store.Store) store.Store {
	if m == nil {
		return s
	}
	return &instrumentedStore{Store: s, writes: m.cacheWrites}
}

type instrumentedStore struct {
	store.Store
	writes *prometheus.CounterVec
}

func (s *instrumentedStore) Set(ctx context.Context, key, value string) error {
	err := s.Store.Set(ctx, key, value)
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	s.writes.WithLabelValues(outcome).Inc()
	return err
}
