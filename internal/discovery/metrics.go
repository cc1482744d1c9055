package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_discovery_poll_duration_seconds",
		Help:    "Duration of Gamma API discovery polls",
		Buckets: prometheus.DefBuckets,
	})

	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_discovery_poll_errors_total",
		Help: "Total number of failed discovery polls",
	})

	MarketsFetched = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_discovery_markets_fetched",
		Help: "Number of markets returned by the most recent poll",
	})

	PairsDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_discovery_pairs_discovered_total",
		Help: "Total number of new YES/NO pairs discovered",
	})
)
