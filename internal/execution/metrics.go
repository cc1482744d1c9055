package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal counts executed signals by mode and outcome.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_executions_total",
			Help: "Total number of executed trade signals",
		},
		[]string{"mode", "result"},
	)

	// ExecutionErrorsTotal counts execution failures by error class.
	ExecutionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_execution_errors_total",
			Help: "Total execution errors by class",
		},
		[]string{"class"},
	)

	// ExecutionDuration tracks end-to-end signal execution time.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_execution_duration_seconds",
		Help:    "Time to execute a trade signal",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	// OrdersSubmittedTotal counts order submissions by outcome.
	OrdersSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_orders_submitted_total",
			Help: "Total orders submitted to the CLOB",
		},
		[]string{"result"},
	)

	// OrderSubmitDuration tracks CLOB round-trip time.
	OrderSubmitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_order_submit_duration_seconds",
		Help:    "CLOB order submission round-trip time",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	// SigningDuration tracks per-order signing time on the pool.
	SigningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_order_signing_duration_seconds",
		Help:    "Time to build and sign a single order",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	// SignerQueueRejections counts signs rejected by a saturated queue.
	SignerQueueRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_signer_queue_rejections_total",
		Help: "Sign requests rejected because the signer queue was full",
	})

	// UnwindsTotal counts unwind attempts after partial executions.
	UnwindsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_unwinds_total",
			Help: "Total unwind attempts after partial executions",
		},
		[]string{"result"},
	)

	// PaperTradesTotal counts simulated fills by outcome.
	PaperTradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_paper_trades_total",
			Help: "Total paper trades by outcome",
		},
		[]string{"result"},
	)

	// PaperNetPnL exports cumulative simulated P&L.
	PaperNetPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_paper_net_pnl_dollars",
		Help: "Cumulative paper trading P&L",
	})
)
