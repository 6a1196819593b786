package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatboard/internal/chat"
)

const namespace = "chatboard"

// Collector implements chat.Metrics on a private Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	connections prometheus.Gauge
	onlineUsers prometheus.Gauge
	transitions *prometheus.CounterVec
	routed      *prometheus.CounterVec
	dropped     *prometheus.CounterVec
}

// NewCollector creates a Collector. With runtime set, the Go runtime and
// process collectors are registered as well.
func NewCollector(runtime bool) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connections",
			Help:      "Open live connections.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users with at least one live connection.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_transitions_total",
			Help:      "Presence transitions by resulting state.",
		}, []string{"state"}),
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Events handed to live connections.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events a live connection could not accept.",
		}, []string{"event"}),
	}

	c.registry.MustRegister(c.connections, c.onlineUsers, c.transitions, c.routed, c.dropped)
	if runtime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ConnectionOpened() { c.connections.Inc() }
func (c *Collector) ConnectionClosed() { c.connections.Dec() }

func (c *Collector) PresenceChanged(online bool) {
	if online {
		c.onlineUsers.Inc()
		c.transitions.WithLabelValues("online").Inc()
		return
	}
	c.onlineUsers.Dec()
	c.transitions.WithLabelValues("offline").Inc()
}

func (c *Collector) EventRouted(event string, delivered int) {
	if delivered > 0 {
		c.routed.WithLabelValues(event).Add(float64(delivered))
	}
}

func (c *Collector) EventDropped(event string) {
	c.dropped.WithLabelValues(event).Inc()
}

var _ chat.Metrics = (*Collector)(nil)
