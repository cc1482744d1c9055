package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollsTotal tracks successful scoreboard polls by league.
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_events_polls_total",
			Help: "Total number of successful scoreboard polls",
		},
		[]string{"league"},
	)

	// PollErrorsTotal tracks failed scoreboard polls by league.
	PollErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_events_poll_errors_total",
			Help: "Total number of failed scoreboard polls",
		},
		[]string{"league"},
	)

	// ResolutionsTotal tracks events resolved to a winning token.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_events_resolutions_total",
			Help: "Total number of events resolved to a winner",
		},
		[]string{"league"},
	)
)
