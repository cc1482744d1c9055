package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HitsTotal counts cache hits.
	HitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_cache_hits_total",
		Help: "Total cache hits",
	})

	// MissesTotal counts cache misses.
	MissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_cache_misses_total",
		Help: "Total cache misses",
	})
)
