package types

import "time"

// OrderStatus is the terminal state of a submitted order.
type OrderStatus string

const (
	OrderFilled   OrderStatus = "filled"
	OrderPartial  OrderStatus = "partial"
	OrderRejected OrderStatus = "rejected"
	OrderTimedOut OrderStatus = "timed_out"
	OrderFailed   OrderStatus = "failed"
)

// Fill records an executed (or simulated) trade on a single token.
type Fill struct {
	TokenID   string    `json:"token_id"`
	Outcome   string    `json:"outcome"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"` // average fill price
	Size      float64   `json:"size"`
	Fee       float64   `json:"fee"` // dollars
	OrderID   string    `json:"order_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notional returns the fill cost in dollars, fee excluded.
func (f Fill) Notional() float64 { return f.Price * f.Size }

// LegResult is the outcome of executing one leg of a signal.
type LegResult struct {
	Intent  OrderIntent
	Status  OrderStatus
	Fill    *Fill // nil unless Status is filled or partial
	OrderID string
	Err     error
}

// ExecutionResult is the outcome of executing a full trade signal.
type ExecutionResult struct {
	SignalID   string
	Strategy   string
	Market     string
	Mode       string // live, dry_run, paper
	Legs       []LegResult
	Success    bool
	ExecutedAt time.Time
	Err        error
}

// Fills returns the fills from all legs that executed.
func (r *ExecutionResult) Fills() []Fill {
	fills := make([]Fill, 0, len(r.Legs))
	for _, leg := range r.Legs {
		if leg.Fill != nil {
			fills = append(fills, *leg.Fill)
		}
	}
	return fills
}
