package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MetadataFetchDuration tracks metadata API latency.
	MetadataFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_markets_metadata_fetch_duration_seconds",
		Help:    "Duration of metadata fetches from the CLOB API",
		Buckets: prometheus.DefBuckets,
	})

	// MetadataFetchErrorsTotal tracks metadata fetch failures.
	MetadataFetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_markets_metadata_fetch_errors_total",
		Help: "Total metadata fetch errors",
	})
)
