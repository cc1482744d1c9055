package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChecksTotal tracks pre-trade check outcomes by rejection rule.
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_risk_checks_total",
			Help: "Total number of pre-trade risk checks",
		},
		[]string{"result", "rule"},
	)

	// ReservationsSettled tracks how reservations were settled.
	ReservationsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_risk_reservations_settled_total",
			Help: "Total number of settled risk reservations",
		},
		[]string{"outcome"},
	)

	// ReservedNotional tracks dollars held by in-flight reservations.
	ReservedNotional = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_risk_reserved_notional",
		Help: "Notional currently reserved by in-flight trades",
	})

	// OpenPositions tracks tokens with a nonzero position.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_risk_open_positions",
		Help: "Number of tokens with an open position",
	})

	// DailyPnL tracks realized P&L for the current UTC day.
	DailyPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_risk_daily_pnl_dollars",
		Help: "Realized P&L for the current UTC day",
	})

	// EmergencyStopActive is 1 while the emergency stop is engaged.
	EmergencyStopActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_risk_emergency_stop_active",
		Help: "Whether the emergency stop is active",
	})

	// FillsRecorded tracks fills folded into the position book.
	FillsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_risk_fills_recorded_total",
			Help: "Total number of fills recorded",
		},
		[]string{"side"},
	)
)
