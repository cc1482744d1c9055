package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerState exports the current state (0=closed, 1=open, 2=half-open).
	BreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
	})

	// BreakerFailuresTotal counts venue failures seen by the breaker.
	BreakerFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_circuit_breaker_failures_total",
		Help: "Total venue failures recorded by the circuit breaker",
	})

	// BreakerRejectionsTotal counts orders refused while the breaker is open.
	BreakerRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_circuit_breaker_rejections_total",
		Help: "Total order attempts rejected by an open circuit breaker",
	})
)
