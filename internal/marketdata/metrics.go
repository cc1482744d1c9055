package marketdata

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal tracks feed updates by event type.
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_marketdata_updates_total",
			Help: "Total number of market-data updates processed",
		},
		[]string{"event_type"},
	)

	// UpdatesRejectedTotal tracks updates dropped at the validation boundary.
	UpdatesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_marketdata_updates_rejected_total",
			Help: "Total number of market-data updates rejected as malformed",
		},
		[]string{"event_type"},
	)

	// UpdatesStaleTotal tracks updates dropped for carrying an older timestamp
	// than the stored book.
	UpdatesStaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_marketdata_updates_stale_total",
		Help: "Total number of market-data updates dropped as out of order",
	})

	// UpdateProcessingDuration tracks time spent applying one update.
	UpdateProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_marketdata_update_duration_seconds",
		Help:    "Time spent processing a single market-data update",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
	})

	// TokensTracked tracks how many tokens currently have a book.
	TokensTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_marketdata_tokens_tracked",
		Help: "Number of tokens with a stored order book",
	})
)
