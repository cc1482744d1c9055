package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mselser95/polymarket-engine/internal/circuitbreaker"
	"github.com/mselser95/polymarket-engine/internal/risk"
	"github.com/mselser95/polymarket-engine/pkg/types"
)

// unwindSlippage is how far below the fill price an unwind sell is priced so
// it crosses the book immediately.
const unwindSlippage = 0.05

// Signer produces signed orders off the caller's goroutine.
type Signer interface {
	Sign(ctx context.Context, intent types.OrderIntent) (*types.SignedOrderJSON, error)
}

// OrderSubmitter is the CLOB surface the manager needs. Implemented by
// Client; faked in tests.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, order *types.SignedOrderJSON, orderType string) (*types.OrderSubmissionResponse, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelAll(ctx context.Context) error
}

// RiskBook is the risk manager surface the manager needs.
type RiskBook interface {
	RecordFill(fill types.Fill)
	EmergencyStop(ctx context.Context, reason string)
}

// TickSizer returns the venue tick size for a token. Optional; prices pass
// through unrounded without one.
type TickSizer interface {
	TickSize(ctx context.Context, tokenID string) (float64, error)
}

// ResultSink receives execution results, fire and forget.
type ResultSink interface {
	PublishTrade(result *types.ExecutionResult)
}

// Manager routes accepted signals into the venue. It owns the reservation it
// is handed: every path through Execute settles it exactly once.
type Manager struct {
	mode    string
	signer  Signer
	client  OrderSubmitter
	riskMgr RiskBook
	paper   *PaperTrader
	breaker *circuitbreaker.Breaker
	ticks   TickSizer
	sinks   []ResultSink
	logger  *zap.Logger
}

// ManagerConfig holds order manager wiring.
type ManagerConfig struct {
	Mode    string // live, dry_run, paper
	Signer  Signer
	Client  OrderSubmitter
	Risk    RiskBook
	Paper   *PaperTrader
	Breaker *circuitbreaker.Breaker // optional
	Ticks   TickSizer               // optional
	Sinks   []ResultSink            // optional
	Logger  *zap.Logger
}

// NewManager creates the order manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Risk == nil {
		return nil, fmt.Errorf("risk book cannot be nil")
	}
	switch cfg.Mode {
	case "live":
		if cfg.Signer == nil || cfg.Client == nil {
			return nil, fmt.Errorf("live mode requires a signer and a CLOB client")
		}
	case "paper":
		if cfg.Paper == nil {
			return nil, fmt.Errorf("paper mode requires a paper trader")
		}
	case "dry_run":
	default:
		return nil, fmt.Errorf("unknown execution mode %q", cfg.Mode)
	}

	return &Manager{
		mode:    cfg.Mode,
		signer:  cfg.Signer,
		client:  cfg.Client,
		riskMgr: cfg.Risk,
		paper:   cfg.Paper,
		breaker: cfg.Breaker,
		ticks:   cfg.Ticks,
		sinks:   cfg.Sinks,
		logger:  cfg.Logger,
	}, nil
}

// Execute runs an accepted signal to completion and settles its reservation.
func (m *Manager) Execute(ctx context.Context, signal types.TradeSignal, reservation *risk.Reservation) {
	start := time.Now()
	result := &types.ExecutionResult{
		SignalID:   signal.ID,
		Strategy:   signal.Strategy,
		Market:     signal.Market,
		Mode:       m.mode,
		ExecutedAt: start,
	}

	switch m.mode {
	case "paper":
		m.executePaper(signal, reservation, result)
	case "dry_run":
		m.executeDryRun(signal, reservation, result)
	case "live":
		m.executeLive(ctx, signal, reservation, result)
	}

	ExecutionDuration.Observe(time.Since(start).Seconds())
	if result.Success {
		ExecutionsTotal.WithLabelValues(m.mode, "success").Inc()
	} else {
		ExecutionsTotal.WithLabelValues(m.mode, "failure").Inc()
		if result.Err != nil {
			ExecutionErrorsTotal.WithLabelValues(string(types.Classify(result.Err))).Inc()
		}
	}

	for _, sink := range m.sinks {
		sink.PublishTrade(result)
	}

	if result.Err != nil {
		m.logger.Error("execution-failed",
			zap.String("signal-id", signal.ID),
			zap.String("strategy", signal.Strategy),
			zap.String("error-class", string(types.Classify(result.Err))),
			zap.Error(result.Err))
	} else {
		m.logger.Info("execution-complete",
			zap.String("signal-id", signal.ID),
			zap.String("strategy", signal.Strategy),
			zap.String("mode", m.mode),
			zap.Float64("size", signal.Size()),
			zap.Float64("edge", signal.Edge))
	}
}

func (m *Manager) executePaper(signal types.TradeSignal, reservation *risk.Reservation, result *types.ExecutionResult) {
	result.Legs = m.paper.Execute(signal)

	filled := false
	for _, leg := range result.Legs {
		if leg.Fill != nil {
			m.riskMgr.RecordFill(*leg.Fill)
			filled = true
		}
		if leg.Err != nil && result.Err == nil {
			result.Err = leg.Err
		}
	}

	if filled {
		reservation.Commit()
		result.Success = true
	} else {
		reservation.Release()
	}
}

func (m *Manager) executeDryRun(signal types.TradeSignal, reservation *risk.Reservation, result *types.ExecutionResult) {
	defer reservation.Release()

	for _, intent := range signal.Legs {
		m.logger.Info("dry-run-order",
			zap.String("signal-id", signal.ID),
			zap.String("token-id", intent.TokenID),
			zap.String("outcome", intent.Outcome),
			zap.String("side", string(intent.Side)),
			zap.Float64("price", intent.Price),
			zap.Float64("size", intent.Size))
		result.Legs = append(result.Legs, types.LegResult{Intent: intent, Status: types.OrderFilled})
	}
	result.Success = true
}

func (m *Manager) executeLive(ctx context.Context, signal types.TradeSignal, reservation *risk.Reservation, result *types.ExecutionResult) {
	if m.breaker != nil && !m.breaker.Allow() {
		result.Err = &types.OrderError{Code: "CIRCUIT_OPEN", Message: "venue circuit breaker open"}
		reservation.Release()
		return
	}

	legs := make([]types.OrderIntent, len(signal.Legs))
	copy(legs, signal.Legs)
	for i := range legs {
		legs[i].Price = m.roundToTick(ctx, legs[i])
	}

	signed, err := m.signLegs(ctx, legs)
	if err != nil {
		result.Err = err
		reservation.Release()
		if types.Classify(err) == types.ErrClassFatal {
			m.riskMgr.EmergencyStop(ctx, "signer unavailable")
		}
		return
	}

	// Submit sequentially so a failed leg halts the signal before more
	// exposure is taken on.
	for i, order := range signed {
		leg := m.submitLeg(ctx, legs[i], order)
		result.Legs = append(result.Legs, leg)

		if leg.Status != types.OrderFilled {
			m.handleLegFailure(ctx, signal, result, i, leg)
			reservation.Release()
			if m.breaker != nil {
				m.breaker.RecordFailure()
			}
			return
		}
	}

	for _, leg := range result.Legs {
		if leg.Fill != nil {
			m.riskMgr.RecordFill(*leg.Fill)
		}
	}
	reservation.Commit()
	if m.breaker != nil {
		m.breaker.RecordSuccess()
	}
	result.Success = true
}

// signLegs signs all legs in parallel on the signer pool.
func (m *Manager) signLegs(ctx context.Context, legs []types.OrderIntent) ([]*types.SignedOrderJSON, error) {
	signed := make([]*types.SignedOrderJSON, len(legs))
	g, gctx := errgroup.WithContext(ctx)
	for i, intent := range legs {
		g.Go(func() error {
			order, err := m.signer.Sign(gctx, intent)
			if err != nil {
				return err
			}
			signed[i] = order
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return signed, nil
}

// submitLeg sends one order and interprets the response. Taker legs go out
// fill-or-kill; anything but a matched response is a failure.
func (m *Manager) submitLeg(ctx context.Context, intent types.OrderIntent, order *types.SignedOrderJSON) types.LegResult {
	leg := types.LegResult{Intent: intent}

	resp, err := m.client.SubmitOrder(ctx, order, "FOK")
	if err != nil {
		leg.Status = types.OrderFailed
		var oe *types.OrderError
		if errors.As(err, &oe) && oe.Code == "ORDER_TIMEOUT" {
			leg.Status = types.OrderTimedOut
			// The order's fate is unknown; clear anything resting before
			// the caller reacts.
			if cancelErr := m.client.CancelAll(ctx); cancelErr != nil {
				m.logger.Warn("post-timeout-cancel-failed", zap.Error(cancelErr))
			}
		}
		leg.Err = err
		return leg
	}

	leg.OrderID = resp.OrderID
	if resp.Status != "matched" {
		leg.Status = types.OrderRejected
		leg.Err = &types.OrderError{
			Code:    types.ErrUnmatched,
			Message: fmt.Sprintf("order %s status %q", resp.OrderID, resp.Status),
			OrderID: resp.OrderID,
			Outcome: intent.Outcome,
		}
		if resp.OrderID != "" {
			if cancelErr := m.client.CancelOrder(ctx, resp.OrderID); cancelErr != nil {
				m.logger.Warn("cancel-unmatched-failed",
					zap.String("order-id", resp.OrderID),
					zap.Error(cancelErr))
			}
		}
		return leg
	}

	leg.Status = types.OrderFilled
	leg.Fill = &types.Fill{
		TokenID:   intent.TokenID,
		Outcome:   intent.Outcome,
		Side:      intent.Side,
		Price:     fillPrice(resp, intent),
		Size:      intent.Size,
		OrderID:   resp.OrderID,
		Timestamp: time.Now(),
	}
	return leg
}

// handleLegFailure deals with a signal that died mid-flight. If an earlier
// leg already filled the position is one-sided and must be unwound; a failed
// unwind stops trading entirely.
func (m *Manager) handleLegFailure(ctx context.Context, signal types.TradeSignal, result *types.ExecutionResult, failedIdx int, failed types.LegResult) {
	if failedIdx == 0 {
		result.Err = failed.Err
		return
	}

	filled := result.Legs[0]
	perr := &types.PartialFillError{
		SignalID:  signal.ID,
		FilledLeg: filled.Intent.TokenID,
		FailedLeg: failed.Intent.TokenID,
	}

	m.logger.Warn("partial-execution-unwinding",
		zap.String("signal-id", signal.ID),
		zap.String("filled-token", filled.Intent.TokenID),
		zap.String("failed-token", failed.Intent.TokenID),
		zap.Error(failed.Err))

	unwindFill, err := m.unwind(ctx, *filled.Fill)
	if err != nil {
		perr.UnwindErr = err
		result.Err = perr
		UnwindsTotal.WithLabelValues("failed").Inc()
		m.riskMgr.RecordFill(*filled.Fill)
		m.riskMgr.EmergencyStop(ctx, fmt.Sprintf("unwind failed on signal %s", signal.ID))
		return
	}

	perr.Unwound = true
	result.Err = perr
	UnwindsTotal.WithLabelValues("success").Inc()

	// Both sides of the round trip hit the book so the realized loss shows
	// up in the daily P&L.
	m.riskMgr.RecordFill(*filled.Fill)
	m.riskMgr.RecordFill(*unwindFill)
	result.Legs = append(result.Legs, types.LegResult{
		Intent:  unwindIntent(*filled.Fill),
		Status:  types.OrderFilled,
		Fill:    unwindFill,
		OrderID: unwindFill.OrderID,
	})
}

// unwind sells back a filled leg, priced under the fill so it crosses.
func (m *Manager) unwind(ctx context.Context, fill types.Fill) (*types.Fill, error) {
	intent := unwindIntent(fill)

	order, err := m.signer.Sign(ctx, intent)
	if err != nil {
		return nil, fmt.Errorf("sign unwind: %w", err)
	}

	resp, err := m.client.SubmitOrder(ctx, order, "FOK")
	if err != nil {
		return nil, fmt.Errorf("submit unwind: %w", err)
	}
	if resp.Status != "matched" {
		return nil, &types.OrderError{
			Code:    types.ErrUnmatched,
			Message: fmt.Sprintf("unwind order status %q", resp.Status),
			OrderID: resp.OrderID,
			Outcome: fill.Outcome,
		}
	}

	return &types.Fill{
		TokenID:   fill.TokenID,
		Outcome:   fill.Outcome,
		Side:      types.SideSell,
		Price:     fillPrice(resp, intent),
		Size:      fill.Size,
		OrderID:   resp.OrderID,
		Timestamp: time.Now(),
	}, nil
}

func unwindIntent(fill types.Fill) types.OrderIntent {
	price := fill.Price - unwindSlippage
	if price < 0.01 {
		price = 0.01
	}
	return types.OrderIntent{
		TokenID: fill.TokenID,
		Outcome: fill.Outcome,
		Side:    types.SideSell,
		Price:   price,
		Size:    fill.Size,
	}
}

// roundToTick snaps a buy price down to the venue tick size. Lookup failures
// leave the price unrounded; the venue rejects it if it was actually off.
func (m *Manager) roundToTick(ctx context.Context, intent types.OrderIntent) float64 {
	if m.ticks == nil {
		return intent.Price
	}
	tick, err := m.ticks.TickSize(ctx, intent.TokenID)
	if err != nil || tick <= 0 {
		return intent.Price
	}
	if intent.Side == types.SideSell {
		return math.Ceil(intent.Price/tick) * tick
	}
	return math.Floor(intent.Price/tick) * tick
}

// fillPrice derives the actual average price from the matched amounts,
// falling back to the limit price when the response omits them.
func fillPrice(resp *types.OrderSubmissionResponse, intent types.OrderIntent) float64 {
	making, err1 := strconv.ParseFloat(resp.MakingAmount, 64)
	taking, err2 := strconv.ParseFloat(resp.TakingAmount, 64)
	if err1 != nil || err2 != nil || making <= 0 || taking <= 0 {
		return intent.Price
	}
	if intent.Side == types.SideSell {
		// Selling shares for USDC: price is dollars received per share.
		return taking / making
	}
	return making / taking
}

// CancelAll cancels every resting order. It backs the risk manager's
// emergency stop; non-live modes have nothing resting.
func (m *Manager) CancelAll(ctx context.Context) error {
	if m.mode != "live" || m.client == nil {
		return nil
	}
	return m.client.CancelAll(ctx)
}

// PaperStats returns paper results when running in paper mode.
func (m *Manager) PaperStats() (PaperStats, bool) {
	if m.paper == nil {
		return PaperStats{}, false
	}
	return m.paper.Stats(), true
}
