package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker state.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker stops order flow to the venue after repeated failures. It counts
// failures inside a rolling window; once the threshold is hit the breaker
// opens for a cooldown, then admits a single probe. The probe's outcome
// decides between closing again and another full cooldown.
type Breaker struct {
	threshold int
	window    time.Duration
	cooldown  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	state    State
	failures []time.Time
	openedAt time.Time
	probing  bool
}

// Config holds circuit breaker configuration.
type Config struct {
	FailureThreshold int
	Window           time.Duration
	Cooldown         time.Duration
	Logger           *zap.Logger
}

// Status is a snapshot of breaker state for the ops endpoints.
type Status struct {
	State          string    `json:"state"`
	RecentFailures int       `json:"recent_failures"`
	OpenedAt       time.Time `json:"opened_at,omitempty"`
}

// New creates a breaker in the closed state.
func New(cfg *Config) (*Breaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.FailureThreshold <= 0 {
		return nil, fmt.Errorf("failure threshold must be positive")
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	BreakerState.Set(float64(StateClosed))

	return &Breaker{
		threshold: cfg.FailureThreshold,
		window:    cfg.Window,
		cooldown:  cfg.Cooldown,
		logger:    cfg.Logger,
		now:       time.Now,
		failures:  make([]time.Time, 0, cfg.FailureThreshold),
	}, nil
}

// Allow reports whether an order may be sent. While open it returns false
// until the cooldown elapses, then admits exactly one probe in half-open.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			BreakerRejectionsTotal.Inc()
			return false
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			BreakerRejectionsTotal.Inc()
			return false
		}
		b.probing = true
		return true
	default:
		return false
	}
}

// RecordSuccess clears failure history. A successful half-open probe closes
// the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = b.failures[:0]
	b.probing = false
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// RecordFailure registers a venue failure. Crossing the threshold inside the
// window opens the breaker; a failed half-open probe reopens it immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.probing = false

	if b.state == StateHalfOpen {
		b.openedAt = now
		b.transition(StateOpen)
		return
	}

	b.failures = append(b.failures, now)
	b.prune(now)
	BreakerFailuresTotal.Inc()

	if b.state == StateClosed && len(b.failures) >= b.threshold {
		b.openedAt = now
		b.transition(StateOpen)
	}
}

// Status returns a snapshot for the ops endpoints.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(b.now())
	status := Status{State: b.state.String(), RecentFailures: len(b.failures)}
	if b.state != StateClosed {
		status.OpenedAt = b.openedAt
	}
	return status
}

// prune drops failures older than the window. Caller holds the lock.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}

// transition changes state. Caller holds the lock.
func (b *Breaker) transition(next State) {
	prev := b.state
	b.state = next
	BreakerState.Set(float64(next))
	b.logger.Warn("circuit-breaker-transition",
		zap.String("from", prev.String()),
		zap.String("to", next.String()),
		zap.Int("recent-failures", len(b.failures)))
}
