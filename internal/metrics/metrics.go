// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the gateway.
type Metrics struct {
	// Session lifecycle
	ActiveSessions   prometheus.Gauge
	SessionsCreated  prometheus.Counter
	SessionsRejected prometheus.Counter
	SessionsEnded    prometheus.Counter
	SessionDuration  prometheus.Histogram

	// Relay
	FramesToAgent    prometheus.Counter
	FramesToDialer   prometheus.Counter
	ConversionErrors prometheus.Counter
	ProtocolErrors   prometheus.Counter
	Interruptions    prometheus.Counter
}

// New creates and registers all gateway metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates the gateway metrics on a specific registerer. Tests use a
// private registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicegate_active_sessions",
			Help: "Sessions currently initializing or active",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicegate_sessions_created_total",
			Help: "Total sessions admitted",
		}),
		SessionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicegate_sessions_rejected_total",
			Help: "Total sessions rejected at admission",
		}),
		SessionsEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicegate_sessions_ended_total",
			Help: "Total sessions that reached the Ended state",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicegate_session_duration_seconds",
			Help:    "Call duration from admission to end",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		FramesToAgent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicegate_frames_to_agent_total",
			Help: "Audio frames relayed dialer to agent",
		}),
		FramesToDialer: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicegate_frames_to_dialer_total",
			Help: "Audio frames relayed agent to dialer",
		}),
		ConversionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicegate_conversion_errors_total",
			Help: "Audio frames dropped due to conversion failures",
		}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicegate_protocol_errors_total",
			Help: "Inbound wire messages dropped as malformed or unrecognized",
		}),
		Interruptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicegate_interruptions_total",
			Help: "Agent barge-in events that flushed queued audio",
		}),
	}
}
