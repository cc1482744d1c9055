package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesPublished counts telemetry messages delivered per channel.
	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_telemetry_messages_published_total",
			Help: "Total telemetry messages published",
		},
		[]string{"channel"},
	)

	// MessagesDropped counts messages dropped because the queue was full.
	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_telemetry_messages_dropped_total",
			Help: "Total telemetry messages dropped on a full queue",
		},
		[]string{"channel"},
	)

	// PublishErrorsTotal counts Redis publish failures per channel.
	PublishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_telemetry_publish_errors_total",
			Help: "Total Redis publish failures",
		},
		[]string{"channel"},
	)
)
