// Package metrics exposes relay counters and gauges to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "huddle"

// Drop reasons for relayed messages.
const (
	DropTargetGone   = "target_gone"
	DropInvalid      = "invalid"
	DropSlowConsumer = "slow_consumer"
	DropClosed       = "closed"
)

// Join results.
const (
	JoinAccepted    = "accepted"
	JoinRoomFull    = "room_full"
	JoinInvalidCode = "invalid_code"
)

// Metrics holds the relay collectors. Each instance owns its registry so that
// tests and multiple hubs in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	Connections  prometheus.Gauge
	Rooms        prometheus.Gauge
	Members      prometheus.Gauge
	Joins        *prometheus.CounterVec
	Relayed      *prometheus.CounterVec
	Dropped      *prometheus.CounterVec
	RateLimited  prometheus.Counter
	HandlerPanic prometheus.Counter
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Number of open participant connections",
		}),
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "rooms",
			Help:      "Number of active rooms",
		}),
		Members: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "members",
			Help:      "Number of connections that are members of a room",
		}),
		Joins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "joins_total",
			Help:      "Join attempts by result",
		}, []string{"result"}),
		Relayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "relayed_total",
			Help:      "Negotiation messages forwarded to a target, by type",
		}, []string{"type"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dropped_total",
			Help:      "Outbound messages dropped, by reason",
		}, []string{"reason"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "rate_limited_total",
			Help:      "Connections closed for exceeding the message rate",
		}),
		HandlerPanic: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "handler_panics_total",
			Help:      "Recovered panics in per-connection message handlers",
		}),
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
