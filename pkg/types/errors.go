package types

import (
	"errors"
	"fmt"
)

// ErrorClass buckets engine failures by how the pipeline should react.
type ErrorClass string

const (
	// ErrClassTransient: retryable infrastructure faults (timeouts, dropped
	// connections). The operation may be retried; the engine keeps running.
	ErrClassTransient ErrorClass = "transient"
	// ErrClassPolicy: the risk manager declined the trade. Not an
	// infrastructure fault and never retried.
	ErrClassPolicy ErrorClass = "policy_rejected"
	// ErrClassPartial: a multi-leg trade filled some legs and failed others,
	// leaving directional exposure that must be unwound.
	ErrClassPartial ErrorClass = "partial_execution"
	// ErrClassFatal: the engine cannot continue safely (signer unavailable,
	// unwind failed). Triggers the emergency stop.
	ErrClassFatal ErrorClass = "fatal"
)

// classifier is implemented by typed errors that know their class.
type classifier interface {
	Class() ErrorClass
}

// Classify maps an error to its taxonomy class. Unrecognized errors are
// treated as transient so an unknown fault never silently halts trading.
func Classify(err error) ErrorClass {
	var c classifier
	if errors.As(err, &c) {
		return c.Class()
	}
	return ErrClassTransient
}

// OrderError is a failure reported by the CLOB while placing, querying or
// cancelling an order.
type OrderError struct {
	Code    string // exchange error code, or an internal code
	Message string
	OrderID string
	Outcome string // YES or NO leg, when known
}

func (e *OrderError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("%s order failed (id %s): %s (%s)", e.Outcome, e.OrderID, e.Message, e.Code)
	}
	return fmt.Sprintf("%s order failed: %s (%s)", e.Outcome, e.Message, e.Code)
}

func (e *OrderError) Class() ErrorClass { return ErrClassTransient }

// RiskRejection is returned when a pre-trade check declines a signal.
type RiskRejection struct {
	Rule   string // which limit fired: emergency_stop, daily_loss, notional, position
	Detail string
}

func (e *RiskRejection) Error() string {
	return fmt.Sprintf("risk check failed (%s): %s", e.Rule, e.Detail)
}

func (e *RiskRejection) Class() ErrorClass { return ErrClassPolicy }

// PartialFillError records a multi-leg trade that left one-sided exposure.
type PartialFillError struct {
	SignalID  string
	FilledLeg string // token that filled
	FailedLeg string // token that did not
	Unwound   bool
	UnwindErr error
}

func (e *PartialFillError) Error() string {
	if e.UnwindErr != nil {
		return fmt.Sprintf("partial execution on signal %s: leg %s filled, leg %s failed, unwind failed: %v",
			e.SignalID, e.FilledLeg, e.FailedLeg, e.UnwindErr)
	}
	if e.Unwound {
		return fmt.Sprintf("partial execution on signal %s: leg %s filled, leg %s failed, exposure unwound",
			e.SignalID, e.FilledLeg, e.FailedLeg)
	}
	return fmt.Sprintf("partial execution on signal %s: leg %s filled, leg %s failed",
		e.SignalID, e.FilledLeg, e.FailedLeg)
}

// Class escalates to fatal when the unwind itself failed: the engine is
// holding exposure it cannot shed.
func (e *PartialFillError) Class() ErrorClass {
	if e.UnwindErr != nil {
		return ErrClassFatal
	}
	return ErrClassPartial
}

func (e *PartialFillError) Unwrap() error { return e.UnwindErr }

// FatalError wraps any condition that requires halting trading.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal: %s", e.Reason)
}

func (e *FatalError) Class() ErrorClass { return ErrClassFatal }

func (e *FatalError) Unwrap() error { return e.Err }

// Known Polymarket CLOB API error codes.
const (
	ErrInvalidMinTickSize = "INVALID_ORDER_MIN_TICK_SIZE"
	ErrNotEnoughBalance   = "INVALID_ORDER_NOT_ENOUGH_BALANCE"
	ErrFOKNotFilled       = "FOK_ORDER_NOT_FILLED_ERROR"
	ErrMarketNotReady     = "MARKET_NOT_READY"
	ErrUnmatched          = "UNMATCHED"
	ErrUnknownStatus      = "UNKNOWN_STATUS"
)
