// Package metrics holds the process Prometheus collectors.
//
// A Metrics value owns its own registry, so tests can build as many as they
// like without clashing on the global default registerer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parley"

// Metrics bundles every collector the server updates.
type Metrics struct {
	Registry *prometheus.Registry

	MessagesAppended  prometheus.Counter
	EventsDispatched  *prometheus.CounterVec
	SendsDropped      prometheus.Counter
	ConnectionsOpened prometheus.Counter
	ConnectionsClosed prometheus.Counter
	HTTPRequests      *prometheus.CounterVec

	LiveConnections prometheus.Gauge
	OnlineUsers     prometheus.Gauge
	StoredTotals    *prometheus.GaugeVec
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		MessagesAppended: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_appended_total",
			Help:      "Messages committed to the message log.",
		}),
		EventsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Socket events queued to live connections, by event name.",
		}, []string{"event"}),
		SendsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_sends_dropped_total",
			Help:      "Events dropped because a connection's send buffer was full.",
		}),
		ConnectionsOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_connections_opened_total",
			Help:      "Socket connections registered with the hub.",
		}),
		ConnectionsClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_connections_closed_total",
			Help:      "Socket connections removed from the hub.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "status"}),

		LiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_live_connections",
			Help:      "Currently registered socket connections.",
		}),
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users with at least one live connection.",
		}),
		StoredTotals: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_entities",
			Help:      "Row counts sampled from storage, by entity kind.",
		}, []string{"kind"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
