package risk

import "sync/atomic"

type reservedLeg struct {
	token string
	size  float64
}

// Reservation is the escrow handed out by Check. It holds the signal's
// buy-side size and notional against the limits until the trade resolves.
// Exactly one of Commit or Release must be called; both are idempotent and
// the second call is a no-op.
type Reservation struct {
	ID       string
	SignalID string
	Notional float64

	legs    []reservedLeg
	manager *Manager
	settled atomic.Bool
}

// Commit releases the escrow after fills were recorded. The position book
// already reflects the fills by then, so the reservation simply stops
// counting against the budgets.
func (r *Reservation) Commit() {
	if r.settled.Swap(true) {
		return
	}
	r.manager.release(r)
	ReservationsSettled.WithLabelValues("committed").Inc()
}

// Release returns the escrow without any position change, used when the
// trade failed, timed out or was never submitted.
func (r *Reservation) Release() {
	if r.settled.Swap(true) {
		return
	}
	r.manager.release(r)
	ReservationsSettled.WithLabelValues("released").Inc()
}
