// Package risk enforces pre-trade limits. Every signal passes through
// Check before execution; an accepted signal holds a reservation against
// the position and notional budgets until its orders resolve, so two
// signals accepted in the same tick can never jointly exceed a limit.
package risk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

// microPerDollar scales dollar P&L into the integer micro-dollars kept in
// the atomic daily counter.
const microPerDollar = 1_000_000

// OrderCanceller cancels all resting orders. Implemented by the execution
// manager; wired in after construction to avoid a package cycle.
type OrderCanceller interface {
	CancelAll(ctx context.Context) error
}

// Config holds risk limits.
type Config struct {
	MaxPosition  float64 // shares per token
	MaxNotional  float64 // dollars per trade
	MaxDailyLoss float64 // dollars
	Logger       *zap.Logger
}

// Manager owns positions, the daily P&L counter and the emergency stop.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	stopped    atomic.Bool
	stopReason atomic.Value // string

	// Realized P&L for the current UTC day, in micro-dollars. Negative when
	// losing. Atomic so the hot-path check never takes the position lock.
	dailyPnLMicro atomic.Int64
	dailyTrades   atomic.Int64

	mu        sync.RWMutex
	positions map[string]*Position

	resMu            sync.Mutex
	reservedSize     map[string]float64 // token id -> in-flight shares
	reservedNotional float64

	cancellerMu sync.RWMutex
	canceller   OrderCanceller

	wg sync.WaitGroup
}

// New creates a risk manager.
func New(cfg Config) *Manager {
	m := &Manager{
		cfg:          cfg,
		logger:       cfg.Logger,
		positions:    make(map[string]*Position),
		reservedSize: make(map[string]float64),
	}
	m.stopReason.Store("")
	return m
}

// SetCanceller wires the order canceller used by the emergency stop.
func (m *Manager) SetCanceller(c OrderCanceller) {
	m.cancellerMu.Lock()
	defer m.cancellerMu.Unlock()
	m.canceller = c
}

// Check runs the pre-trade checks in fixed order: emergency stop, daily
// loss, per-trade notional, then post-trade position per leg. On success it
// returns a reservation holding the signal's size and notional against the
// budgets; the caller must Commit or Release it when the orders resolve.
func (m *Manager) Check(signal *types.TradeSignal) (*Reservation, error) {
	if m.stopped.Load() {
		ChecksTotal.WithLabelValues("rejected", "emergency_stop").Inc()
		return nil, &types.RiskRejection{
			Rule:   "emergency_stop",
			Detail: fmt.Sprintf("trading halted: %s", m.stopReason.Load().(string)),
		}
	}

	if pnl := m.DailyPnL(); pnl <= -m.cfg.MaxDailyLoss {
		ChecksTotal.WithLabelValues("rejected", "daily_loss").Inc()
		return nil, &types.RiskRejection{
			Rule:   "daily_loss",
			Detail: fmt.Sprintf("daily loss %.2f reached limit %.2f", -pnl, m.cfg.MaxDailyLoss),
		}
	}

	notional := signal.TotalNotional()
	if notional > m.cfg.MaxNotional {
		ChecksTotal.WithLabelValues("rejected", "notional").Inc()
		return nil, &types.RiskRejection{
			Rule:   "notional",
			Detail: fmt.Sprintf("trade notional %.2f exceeds limit %.2f", notional, m.cfg.MaxNotional),
		}
	}

	m.resMu.Lock()
	defer m.resMu.Unlock()

	for _, leg := range signal.Legs {
		if leg.Side != types.SideBuy {
			continue
		}
		current := m.positionSize(leg.TokenID)
		projected := current + m.reservedSize[leg.TokenID] + leg.Size
		if projected > m.cfg.MaxPosition {
			ChecksTotal.WithLabelValues("rejected", "position").Inc()
			return nil, &types.RiskRejection{
				Rule: "position",
				Detail: fmt.Sprintf("token %s position would reach %.2f (held %.2f, in-flight %.2f), limit %.2f",
					leg.TokenID, projected, current, m.reservedSize[leg.TokenID], m.cfg.MaxPosition),
			}
		}
	}

	res := &Reservation{
		ID:       uuid.NewString(),
		SignalID: signal.ID,
		Notional: notional,
		manager:  m,
	}
	for _, leg := range signal.Legs {
		if leg.Side != types.SideBuy {
			continue
		}
		res.legs = append(res.legs, reservedLeg{token: leg.TokenID, size: leg.Size})
		m.reservedSize[leg.TokenID] += leg.Size
	}
	m.reservedNotional += notional
	ReservedNotional.Set(m.reservedNotional)

	ChecksTotal.WithLabelValues("accepted", "").Inc()
	return res, nil
}

func (m *Manager) positionSize(tokenID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pos, ok := m.positions[tokenID]; ok {
		return pos.Size
	}
	return 0
}

// release returns a reservation's escrow to the budgets. Idempotence is
// enforced by the Reservation itself.
func (m *Manager) release(res *Reservation) {
	m.resMu.Lock()
	defer m.resMu.Unlock()

	for _, leg := range res.legs {
		m.reservedSize[leg.token] -= leg.size
		if m.reservedSize[leg.token] <= 1e-9 {
			delete(m.reservedSize, leg.token)
		}
	}
	m.reservedNotional -= res.Notional
	if m.reservedNotional < 0 {
		m.reservedNotional = 0
	}
	ReservedNotional.Set(m.reservedNotional)
}

// RecordFill folds an executed fill into the position book and the daily
// P&L counter. Buys adjust average entry; sells realize P&L against it.
func (m *Manager) RecordFill(fill types.Fill) {
	m.mu.Lock()
	pos, ok := m.positions[fill.TokenID]
	if !ok {
		pos = &Position{TokenID: fill.TokenID, Outcome: fill.Outcome}
		m.positions[fill.TokenID] = pos
	}

	var realized float64
	switch fill.Side {
	case types.SideBuy:
		total := pos.Size + fill.Size
		if total > 0 {
			pos.AvgEntry = (pos.AvgEntry*pos.Size + fill.Price*fill.Size) / total
		}
		pos.Size = total
	case types.SideSell:
		realized = (fill.Price - pos.AvgEntry) * fill.Size
		pos.Size -= fill.Size
		if pos.Size <= 1e-9 {
			pos.Size = 0
			pos.AvgEntry = 0
		}
		pos.Realized += realized
	}
	pos.UpdatedAt = fill.Timestamp
	openPositions := 0
	for _, p := range m.positions {
		if p.Size > 0 {
			openPositions++
		}
	}
	m.mu.Unlock()

	// Fees always reduce the day's P&L.
	deltaMicro := int64((realized - fill.Fee) * microPerDollar)
	m.dailyPnLMicro.Add(deltaMicro)
	m.dailyTrades.Add(1)

	OpenPositions.Set(float64(openPositions))
	DailyPnL.Set(m.DailyPnL())
	FillsRecorded.WithLabelValues(string(fill.Side)).Inc()

	m.logger.Info("fill-recorded",
		zap.String("token-id", fill.TokenID),
		zap.String("side", string(fill.Side)),
		zap.Float64("price", fill.Price),
		zap.Float64("size", fill.Size),
		zap.Float64("realized", realized))
}

// DailyPnL returns today's realized P&L in dollars.
func (m *Manager) DailyPnL() float64 {
	return float64(m.dailyPnLMicro.Load()) / microPerDollar
}

// EmergencyStop halts all trading and cancels resting orders. Idempotent:
// repeated calls keep the first reason and do not re-cancel.
func (m *Manager) EmergencyStop(ctx context.Context, reason string) {
	if m.stopped.Swap(true) {
		return
	}
	m.stopReason.Store(reason)
	EmergencyStopActive.Set(1)

	m.logger.Error("EMERGENCY-STOP-ACTIVATED", zap.String("reason", reason))

	m.cancellerMu.RLock()
	canceller := m.canceller
	m.cancellerMu.RUnlock()

	if canceller != nil {
		err := canceller.CancelAll(ctx)
		if err != nil {
			m.logger.Error("emergency-stop-cancel-all-failed", zap.Error(err))
		}
	}
}

// Resume re-enables trading after an emergency stop.
func (m *Manager) Resume() {
	if !m.stopped.Swap(false) {
		return
	}
	m.stopReason.Store("")
	EmergencyStopActive.Set(0)
	m.logger.Warn("trading-resumed")
}

// Stopped reports whether the emergency stop is active.
func (m *Manager) Stopped() bool {
	return m.stopped.Load()
}

// StopReason returns the active stop reason, empty when trading.
func (m *Manager) StopReason() string {
	return m.stopReason.Load().(string)
}

// StartDailyReset launches a goroutine that clears daily stats at each UTC
// midnight.
func (m *Manager) StartDailyReset(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			now := time.Now().UTC()
			next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
			select {
			case <-ctx.Done():
				return
			case <-time.After(next.Sub(now)):
				m.ResetDaily()
			}
		}
	}()
}

// ResetDaily clears the daily P&L counter and trade count.
func (m *Manager) ResetDaily() {
	m.dailyPnLMicro.Store(0)
	m.dailyTrades.Store(0)
	DailyPnL.Set(0)
	m.logger.Info("daily-stats-reset")
}

// Close waits for background goroutines.
func (m *Manager) Close() error {
	m.wg.Wait()
	return nil
}
