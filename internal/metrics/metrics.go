// Package metrics exposes prometheus collectors for the push subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	OpenConnections       prometheus.Gauge
	IdentifiedConnections prometheus.Gauge
	PublishedEvents       *prometheus.CounterVec
	DroppedConnections    *prometheus.CounterVec
	PrunedConnections     prometheus.Counter
}

const (
	namespace = "bellhop"
	subsystem = "hub"
)

// LabelReason values for DroppedConnections.
const (
	ReasonSlowConsumer  = "slow_consumer"
	ReasonWriteError    = "write_error"
	ReasonProtocolError = "protocol_error"
	ReasonAuthFailed    = "auth_failed"
)

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OpenConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "open_connections",
			Help:      "Number of accepted transport connections, identified or not.",
		}),
		IdentifiedConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "identified_connections",
			Help:      "Number of connections bound to a user.",
		}),
		PublishedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "published_events_total",
			Help:      "Events published through the hub, by event kind.",
		}, []string{"kind"}),
		DroppedConnections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dropped_connections_total",
			Help:      "Connections dropped by the hub, by reason.",
		}, []string{"reason"}),
		PrunedConnections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pruned_connections_total",
			Help:      "Connections removed by the heartbeat janitor.",
		}),
	}
}

// NewNop returns metrics backed by a throwaway registry, for tests and for
// callers that do not scrape.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
