package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector gathers relay-side counters: how many wires are attached
// and how many envelopes of each kind pass through.
type Collector struct {
	activeWires     prometheus.Gauge
	wireConnections *prometheus.CounterVec
	wireDisconnects *prometheus.CounterVec
	messagesRouted  *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		activeWires: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "collab_active_wires",
			Help: "Number of attached websocket wires",
		}),
		wireConnections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collab_wire_connections_total",
				Help: "Total number of wire attachments",
			},
			[]string{"room_id"},
		),
		wireDisconnects: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collab_wire_disconnects_total",
				Help: "Total number of wire detachments",
			},
			[]string{"room_id"},
		),
		messagesRouted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collab_messages_routed_total",
				Help: "Total number of envelopes routed by the relay",
			},
			[]string{"room_id", "kind"},
		),
	}
}

func (c *Collector) WireOpened(roomID string) {
	c.wireConnections.WithLabelValues(roomID).Inc()
	c.activeWires.Inc()
}

func (c *Collector) WireClosed(roomID string) {
	c.wireDisconnects.WithLabelValues(roomID).Inc()
	c.activeWires.Dec()
}

func (c *Collector) MessageRouted(roomID, kind string) {
	c.messagesRouted.WithLabelValues(roomID, kind).Inc()
}

// Handler exposes the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.Handler()
}
