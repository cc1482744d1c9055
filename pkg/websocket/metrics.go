package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks active WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_ws_active_connections",
		Help: "Number of active WebSocket connections",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_ws_reconnect_attempts_total",
		Help: "Total number of WebSocket reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_ws_reconnect_failures_total",
		Help: "Total number of WebSocket reconnection failures",
	})

	// MessagesReceivedTotal tracks feed events received by type.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_ws_messages_received_total",
			Help: "Total number of WebSocket feed events received",
		},
		[]string{"event_type"},
	)

	// MessagesDroppedTotal tracks events dropped because the channel was full.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_ws_messages_dropped_total",
			Help: "Total number of WebSocket feed events dropped",
		},
		[]string{"reason"},
	)

	// SubscriptionCount tracks active token subscriptions.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_ws_subscription_count",
		Help: "Number of active token subscriptions",
	})

	// ConnectionDuration tracks connection lifetime before a disconnect.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})
)
