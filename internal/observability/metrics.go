package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haasonsaas/cerebot/pkg/models"
)

// Metrics holds the Prometheus collectors exported by the bridge.
//
// Usage:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.MessageReceived()
//	metrics.RecordCommand("addrole", "ok", time.Since(start).Seconds())
type Metrics struct {
	// MessageCounter tracks chat messages by direction.
	// Labels: direction (inbound|outbound)
	MessageCounter *prometheus.CounterVec

	// CommandCounter counts dispatched commands.
	// Labels: command, outcome (ok|error|denied|usage)
	CommandCounter *prometheus.CounterVec

	// CommandDuration measures handler run time in seconds.
	// Labels: command
	CommandDuration *prometheus.HistogramVec

	// RateLimitedCounter counts commands dropped by the command limiter.
	RateLimitedCounter prometheus.Counter

	// ConnectionState mirrors the connection manager state as a number.
	ConnectionState prometheus.Gauge

	// KeepaliveFailures counts liveness probes that failed.
	KeepaliveFailures prometheus.Counter

	// ReconnectCounter counts connection attempts made by the supervisor.
	// Labels: status (success|error)
	ReconnectCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by component and type.
	// Labels: component, error_type
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// registers with the Prometheus default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		MessageCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cerebot_messages_total",
				Help: "Total number of chat messages by direction",
			},
			[]string{"direction"},
		),

		CommandCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cerebot_commands_total",
				Help: "Total number of bot commands by name and outcome",
			},
			[]string{"command", "outcome"},
		),

		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cerebot_command_duration_seconds",
				Help:    "Duration of bot command handlers in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"command"},
		),

		RateLimitedCounter: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cerebot_commands_rate_limited_total",
				Help: "Total number of bot commands dropped by the command limit",
			},
		),

		ConnectionState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cerebot_connection_state",
				Help: "Connection state (0 disconnected, 1 connecting, 2 connected, 3 disconnecting)",
			},
		),

		KeepaliveFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cerebot_keepalive_failures_total",
				Help: "Total number of failed keepalive probes",
			},
		),

		ReconnectCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cerebot_reconnects_total",
				Help: "Total number of connection attempts made by the reconnect supervisor",
			},
			[]string{"status"},
		),

		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cerebot_errors_total",
				Help: "Total number of errors by component and type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// MessageReceived increments the inbound message counter.
func (m *Metrics) MessageReceived() {
	if m == nil {
		return
	}
	m.MessageCounter.WithLabelValues(string(models.DirectionInbound)).Inc()
}

// MessageSent increments the outbound message counter.
func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.MessageCounter.WithLabelValues(string(models.DirectionOutbound)).Inc()
}

// RecordCommand records a command outcome and, for commands that ran, its
// duration.
func (m *Metrics) RecordCommand(command, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.CommandCounter.WithLabelValues(command, outcome).Inc()
	if outcome == "ok" || outcome == "error" {
		m.CommandDuration.WithLabelValues(command).Observe(durationSeconds)
	}
}

// CommandRateLimited increments the rate-limited counter.
func (m *Metrics) CommandRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedCounter.Inc()
}

// SetConnectionState sets the connection state gauge.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(state))
}

// KeepaliveFailed increments the keepalive failure counter.
func (m *Metrics) KeepaliveFailed() {
	if m == nil {
		return
	}
	m.KeepaliveFailures.Inc()
}

// RecordReconnect records the result of a supervisor connection attempt.
func (m *Metrics) RecordReconnect(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ReconnectCounter.WithLabelValues(status).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}
