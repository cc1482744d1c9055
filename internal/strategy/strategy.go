// Package strategy holds the closed set of trading strategies and the
// engine that evaluates them on a fixed cadence. Strategies are pure
// functions of the market-data store: they read snapshots, never block, and
// never talk to the network.
package strategy

import (
	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/pkg/types"
)

// Strategy is one member of the closed strategy set.
type Strategy interface {
	// Name identifies the strategy in signals, logs and telemetry.
	Name() string
	// Active reports whether the strategy is enabled.
	Active() bool
	// Evaluate scans the store and returns zero or more trade signals.
	// Called on every engine tick; must not block.
	Evaluate(store *marketdata.Store) []types.TradeSignal
}

// SizingCaps bounds the share size a strategy may put on a single signal.
// Mirrors the hard risk limits so strategies propose sizes the risk manager
// can accept; the risk manager still has the final say.
type SizingCaps struct {
	MaxPosition float64 // shares
	MaxNotional float64 // dollars
}

// capSize shrinks size so that size*costPerShare stays within the caps.
func (c SizingCaps) capSize(size, costPerShare float64) float64 {
	if size > c.MaxPosition {
		size = c.MaxPosition
	}
	if costPerShare > 0 && size*costPerShare > c.MaxNotional {
		size = c.MaxNotional / costPerShare
	}
	return size
}
