package types

import "time"

// SignalKind classifies what a strategy wants done with a signal.
type SignalKind string

const (
	// SignalArbitrage buys both outcomes of a pair whose prices sum below 1.
	SignalArbitrage SignalKind = "arbitrage"
	// SignalSnipe buys a single outcome believed to be resolved.
	SignalSnipe SignalKind = "snipe"
)

// OrderIntent is one leg of a trade signal: what to buy or sell, at what
// limit price, and how much.
type OrderIntent struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"` // "YES" or "NO"
	Side    Side    `json:"side"`
	Price   float64 `json:"price"` // limit price
	Size    float64 `json:"size"`  // shares
}

// Notional returns the cost of the leg in dollars.
func (o OrderIntent) Notional() float64 {
	return o.Price * o.Size
}

// TradeSignal is an actionable trade emitted by a strategy. Arbitrage signals
// carry two legs (YES and NO); snipe signals carry one.
type TradeSignal struct {
	ID        string        `json:"id"`
	Strategy  string        `json:"strategy"`
	Kind      SignalKind    `json:"kind"`
	Market    string        `json:"market"`
	Legs      []OrderIntent `json:"legs"`
	Edge      float64       `json:"edge"` // expected profit per share, after fees
	CreatedAt time.Time     `json:"created_at"`
}

// Size returns the share size of the signal. Legs of a multi-leg signal share
// a single size by construction.
func (s *TradeSignal) Size() float64 {
	if len(s.Legs) == 0 {
		return 0
	}
	return s.Legs[0].Size
}

// TotalNotional returns the combined dollar cost of all legs.
func (s *TradeSignal) TotalNotional() float64 {
	var total float64
	for _, leg := range s.Legs {
		total += leg.Notional()
	}
	return total
}

// ExpectedProfit returns the expected dollar profit at full fill.
func (s *TradeSignal) ExpectedProfit() float64 {
	return s.Edge * s.Size()
}
