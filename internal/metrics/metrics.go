// Package metrics exports negotiation and traffic counters to Prometheus and
// serves them, with a health probe, over HTTP.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/1ureka/duet/internal/signaling"
	"github.com/1ureka/duet/internal/util"
)

const namespace = "duet"

// Metrics records negotiation activity. It implements signaling.Observer.
type Metrics struct {
	registry *prometheus.Registry

	sent     *prometheus.CounterVec
	received *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	queued   prometheus.Counter
	applied  prometheus.Counter
	state    prometheus.Gauge

	mu      sync.RWMutex
	current signaling.State
}

var _ signaling.Observer = (*Metrics)(nil)

// New creates a Metrics on its own registry. Data channel and media traffic
// is read from stats at scrape time.
func New(stats *util.Stats) *Metrics {
	if stats == nil {
		stats = &util.Stats{}
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "messages_sent_total",
			Help: "Signaling messages sent to the relay, by event.",
		}, []string{"event"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "messages_received_total",
			Help: "Decoded signaling messages received from the relay, by event.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "messages_dropped_total",
			Help: "Relay messages dropped without effect, by reason.",
		}, []string{"reason"}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "candidates_queued_total",
			Help: "Remote candidates queued until a remote description was set.",
		}),
		applied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "candidates_applied_total",
			Help: "Remote candidates applied to the session.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "state",
			Help: "Current negotiation state (0 idle ... 5 connected, 6 closed).",
		}),
	}

	traffic := func(name, help string, load func() int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: name, Help: help,
		}, func() float64 { return float64(load()) })
	}

	m.registry.MustRegister(
		m.sent, m.received, m.dropped, m.queued, m.applied, m.state,
		traffic("chat_messages_sent_total", "Text messages written to the data channel.", stats.MsgsSent.Load),
		traffic("chat_messages_received_total", "Text messages read from the data channel.", stats.MsgsRecv.Load),
		traffic("chat_bytes_sent_total", "Payload bytes written to the data channel.", stats.BytesSent.Load),
		traffic("chat_bytes_received_total", "Payload bytes read from the data channel.", stats.BytesRecv.Load),
		traffic("media_bytes_received_total", "RTP payload bytes received on remote tracks.", stats.MediaRecv.Load),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// State returns the last negotiation state observed.
func (m *Metrics) State() signaling.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Metrics) MessageSent(kind signaling.Kind) { m.sent.WithLabelValues(string(kind)).Inc() }
func (m *Metrics) MessageReceived(kind signaling.Kind) {
	m.received.WithLabelValues(string(kind)).Inc()
}
func (m *Metrics) MessageDropped(reason string) { m.dropped.WithLabelValues(reason).Inc() }
func (m *Metrics) CandidateQueued()             { m.queued.Inc() }
func (m *Metrics) CandidateApplied()            { m.applied.Inc() }

func (m *Metrics) StateChanged(s signaling.State) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	m.state.Set(float64(s))
}
