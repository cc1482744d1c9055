package websocket

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BackoffConfig holds exponential backoff parameters.
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFrac   float64 // 0.2 = up to 20% added on top of the base delay
}

// Backoff retries an operation with exponential delay and jitter. The delay
// keeps growing across reconnects until the owner calls Reset after the
// connection has stayed healthy for a while; a flapping feed therefore never
// hammers the venue at the base delay.
type Backoff struct {
	config  BackoffConfig
	logger  *zap.Logger
	mu      sync.Mutex
	current time.Duration
}

// NewBackoff creates a backoff starting at the configured initial delay.
func NewBackoff(cfg BackoffConfig, logger *zap.Logger) *Backoff {
	return &Backoff{
		config:  cfg,
		logger:  logger,
		current: cfg.InitialDelay,
	}
}

// Retry runs fn until it succeeds or the context is cancelled, sleeping the
// current backoff delay before each attempt.
func (b *Backoff) Retry(ctx context.Context, fn func(context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delay := b.delay()

		b.logger.Info("attempting-reconnection", zap.Duration("delay", delay))
		ReconnectAttemptsTotal.Inc()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		err := fn(ctx)
		if err == nil {
			b.logger.Info("reconnection-successful")
			return nil
		}

		b.logger.Warn("reconnection-attempt-failed", zap.Error(err))
		ReconnectFailuresTotal.Inc()
	}
}

// delay returns the current jittered delay and advances the base delay for
// the next attempt, capped at MaxDelay.
func (b *Backoff) delay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	jitter := rand.Float64() * b.config.JitterFrac
	delay := time.Duration(float64(b.current) * (1.0 + jitter))

	next := time.Duration(float64(b.current) * b.config.Multiplier)
	if next > b.config.MaxDelay {
		next = b.config.MaxDelay
	}
	b.current = next

	return delay
}

// Reset restores the initial delay. Called once a connection has stayed
// healthy for a full liveness window so a later outage starts with short
// retries again.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.config.InitialDelay
}
