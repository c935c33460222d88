package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DropSlowConsumer = "slow_consumer"
	DropRateLimited  = "rate_limited"
	DropNotLoggedIn  = "not_logged_in"
	DropUnknownEvent = "unknown_event"
	DropMalformed    = "malformed"
	DropEmptyMessage = "empty_message"
)

type Metrics struct {
	Connections prometheus.Gauge
	Relayed     *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
}

// NewMetrics registers the relay collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inbox",
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Number of open websocket connections.",
		}),
		Relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inbox",
			Subsystem: "relay",
			Name:      "events_total",
			Help:      "Events accepted for fan-out, by event name.",
		}, []string{"event"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inbox",
			Subsystem: "relay",
			Name:      "dropped_total",
			Help:      "Frames dropped, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.Connections, m.Relayed, m.Dropped)
	return m
}

// The helpers below accept a nil receiver so tests can run without metrics.

func (m *Metrics) connected() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) disconnected() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) relayed(event string) {
	if m != nil {
		m.Relayed.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) dropped(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}
