package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WritesTotal counts persisted execution records.
	WritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_storage_writes_total",
		Help: "Total execution records persisted",
	})

	// WriteErrorsTotal counts failed writes.
	WriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_storage_write_errors_total",
		Help: "Total storage write failures",
	})

	// WritesDroppedTotal counts records dropped on a full queue.
	WritesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_storage_writes_dropped_total",
		Help: "Total execution records dropped before persistence",
	})
)
