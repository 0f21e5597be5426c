// Package metrics defines the Prometheus collectors exported by the relay and
// the HTTP handler that serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery results used as the "result" label of Deliveries.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// ReasonRateLimit is the "reason" label used when an inbound message is dropped
// by the per-connection rate limiter.
const ReasonRateLimit = "rate_limit"

var (
	// Connections is the number of connections currently joined to a room.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomrelay",
		Name:      "connections",
		Help:      "Connections currently joined to a room.",
	})

	// Rooms is the number of rooms with at least one member.
	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomrelay",
		Name:      "rooms",
		Help:      "Rooms with at least one member.",
	})

	// MessagesReceived counts inbound messages accepted for broadcast.
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomrelay",
		Name:      "messages_received_total",
		Help:      "Inbound messages accepted for broadcast.",
	})

	// Deliveries counts per-recipient send attempts by result.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomrelay",
		Name:      "deliveries_total",
		Help:      "Per-recipient delivery attempts by result.",
	}, []string{"result"})

	// Dropped counts inbound messages discarded before broadcast.
	Dropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomrelay",
		Name:      "dropped_total",
		Help:      "Inbound messages discarded before broadcast.",
	}, []string{"reason"})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
