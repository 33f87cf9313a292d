package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks active SpotFeed connections (0 or 1).
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btc15m_spotfeed_active_connections",
		Help: "Number of active spot-feed WebSocket connections",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btc15m_spotfeed_reconnect_attempts_total",
		Help: "Total number of spot-feed reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btc15m_spotfeed_reconnect_failures_total",
		Help: "Total number of spot-feed reconnection failures",
	})

	// MessagesReceivedTotal tracks messages received by type.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btc15m_spotfeed_messages_received_total",
			Help: "Total number of spot-feed messages received",
		},
		[]string{"event_type"},
	)

	// MessageLatencySeconds tracks message processing latency.
	MessageLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "btc15m_spotfeed_message_latency_seconds",
		Help:    "Spot-feed tick processing latency",
		Buckets: prometheus.DefBuckets,
	})

	// SubscriptionCount tracks whether the ticker channel subscription is active.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btc15m_spotfeed_subscription_count",
		Help: "Number of active spot-feed channel subscriptions",
	})
)
