package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignalsTotal tracks signals emitted by strategy.
	SignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_strategy_signals_total",
			Help: "Total number of trade signals emitted",
		},
		[]string{"strategy"},
	)

	// SignalsRejectedTotal tracks signals declined by the risk check.
	SignalsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_strategy_signals_rejected_total",
			Help: "Total number of signals rejected by risk checks",
		},
		[]string{"strategy"},
	)

	// EvaluationsSkipped tracks per-pair evaluations skipped before pricing.
	EvaluationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_strategy_evaluations_skipped_total",
			Help: "Total number of evaluations skipped before pricing",
		},
		[]string{"strategy", "reason"},
	)

	// EdgeObserved tracks the edge distribution seen per strategy.
	EdgeObserved = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polymarket_strategy_edge_observed",
			Help:    "Edge observed per pair evaluation",
			Buckets: prometheus.LinearBuckets(-0.05, 0.005, 30),
		},
		[]string{"strategy"},
	)

	// EvalDuration tracks the duration of one full evaluation tick.
	EvalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_strategy_eval_duration_seconds",
		Help:    "Duration of a full strategy evaluation tick",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})
)
