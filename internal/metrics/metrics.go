package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent tracks messages written to the socket
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_messages_sent_total",
			Help: "Total number of messages written to the tracking stream",
		},
	)

	// MessagesReceived tracks inbound messages, routed or not
	MessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_messages_received_total",
			Help: "Total number of messages received from the tracking stream",
		},
	)

	// MessagesDropped tracks outbound messages dropped at queue capacity
	MessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_messages_dropped_total",
			Help: "Total number of outbound messages dropped because the queue was full",
		},
	)

	// TransportErrors tracks socket open/send/close failures
	TransportErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_transport_errors_total",
			Help: "Total number of socket-level failures",
		},
	)

	// ProtocolErrors tracks malformed envelopes and binary frames
	ProtocolErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_protocol_errors_total",
			Help: "Total number of malformed messages dropped",
		},
	)

	// ReconnectAttempts tracks scheduled reconnection attempts
	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_reconnect_attempts_total",
			Help: "Total number of reconnection attempts scheduled",
		},
	)

	// ConnectionState exposes the lifecycle state as a numeric gauge
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connection_state",
			Help: "Current connection state (0=disconnected 1=connecting 2=connected 3=reconnecting 4=error 5=closed)",
		},
	)

	// RecoverySessions tracks terminal recovery sessions per plan and outcome
	RecoverySessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_recovery_sessions_total",
			Help: "Total number of recovery sessions by plan and terminal status",
		},
		[]string{"plan", "status"},
	)

	// ActiveRecoverySessions tracks sessions currently in progress
	ActiveRecoverySessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_recovery_sessions_active",
			Help: "Number of recovery sessions currently in progress",
		},
	)

	// RecoveryStepDuration tracks per-step execution latency
	RecoveryStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realtime_recovery_step_seconds",
			Help:    "Recovery step execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"plan", "step"},
	)
)
