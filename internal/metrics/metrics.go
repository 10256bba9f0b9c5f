// Package metrics holds the Prometheus collectors of the realtime stack.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	ConnectionState *prometheus.GaugeVec
	Reconnects      *prometheus.CounterVec
	FramesReceived  *prometheus.CounterVec
	ParseErrors     *prometheus.CounterVec
	Published       *prometheus.CounterVec
	OutboxPending   prometheus.Gauge
	SwipeOutcomes   *prometheus.CounterVec
}

// New registers the collectors on reg. Each registry gets its own set so
// tests can use a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jobswipe_realtime_connection_state",
			Help: "1 for the current state of each connection owner, 0 otherwise",
		}, []string{"owner", "state"}),
		Reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobswipe_realtime_reconnects_total",
			Help: "Reconnect attempts scheduled after a transport failure",
		}, []string{"owner"}),
		FramesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobswipe_realtime_frames_received_total",
			Help: "Inbound MESSAGE frames by topic category",
		}, []string{"category"}),
		ParseErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobswipe_realtime_parse_errors_total",
			Help: "Inbound payloads dropped because they could not be decoded",
		}, []string{"category"}),
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobswipe_realtime_published_total",
			Help: "Frames published to the server by destination",
		}, []string{"destination"}),
		OutboxPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "jobswipe_outbox_pending",
			Help: "Confirmations waiting in the local outbox",
		}),
		SwipeOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobswipe_swipe_outcomes_total",
			Help: "Swipe decisions by outcome",
		}, []string{"outcome"}),
	}
}

var states = []string{"DISCONNECTED", "CONNECTING", "CONNECTED", "RECONNECTING"}

// SetState flips the state gauge of owner so exactly one state reads 1.
func (m *Metrics) SetState(owner, state string) {
	if m == nil {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(owner, s).Set(v)
	}
}

// Forget removes the gauges of an owner that closed.
func (m *Metrics) Forget(owner string) {
	if m == nil {
		return
	}
	for _, s := range states {
		m.ConnectionState.DeleteLabelValues(owner, s)
	}
}

func (m *Metrics) RecordReconnect(owner string) {
	if m == nil {
		return
	}
	m.Reconnects.WithLabelValues(owner).Inc()
}

func (m *Metrics) RecordFrame(category string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(category).Inc()
}

func (m *Metrics) RecordParseError(category string) {
	if m == nil {
		return
	}
	m.ParseErrors.WithLabelValues(category).Inc()
}

func (m *Metrics) RecordPublish(destination string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(destination).Inc()
}

func (m *Metrics) SetOutboxPending(n int64) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(n))
}

func (m *Metrics) RecordSwipe(outcome string) {
	if m == nil {
		return
	}
	m.SwipeOutcomes.WithLabelValues(outcome).Inc()
}
