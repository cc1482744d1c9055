package strategy

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/internal/risk"
	"github.com/mselser95/polymarket-engine/pkg/types"
)

// RiskChecker is the risk manager surface the engine needs.
type RiskChecker interface {
	Check(signal *types.TradeSignal) (*risk.Reservation, error)
}

// Executor runs an accepted signal. It owns the reservation from the moment
// it is handed over and must settle it.
type Executor interface {
	Execute(ctx context.Context, signal types.TradeSignal, reservation *risk.Reservation)
}

// SignalPublisher fans signals out to telemetry.
type SignalPublisher interface {
	PublishSignal(signal types.TradeSignal)
}

// Engine evaluates the strategy set on a fixed cadence and pushes accepted
// signals into execution, best edge first.
type Engine struct {
	cfg        EngineConfig
	strategies []Strategy
	logger     *zap.Logger

	lastTickNs atomic.Int64
	tickCount  atomic.Int64
	sigCount   atomic.Int64

	wg sync.WaitGroup
}

// EngineConfig holds engine wiring.
type EngineConfig struct {
	Store        *marketdata.Store
	Risk         RiskChecker
	Executor     Executor
	Publisher    SignalPublisher // optional
	EvalInterval time.Duration
	Logger       *zap.Logger
}

// NewEngine creates the strategy engine with the given strategy set.
func NewEngine(cfg EngineConfig, strategies ...Strategy) *Engine {
	return &Engine{
		cfg:        cfg,
		strategies: strategies,
		logger:     cfg.Logger,
	}
}

// Start launches the evaluation loop.
func (e *Engine) Start(ctx context.Context) error {
	active := 0
	for _, s := range e.strategies {
		if s.Active() {
			active++
		}
	}
	e.logger.Info("strategy-engine-starting",
		zap.Duration("eval-interval", e.cfg.EvalInterval),
		zap.Int("strategies", len(e.strategies)),
		zap.Int("active", active))

	e.wg.Add(1)
	go e.run(ctx)

	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.EvalInterval)
	defer ticker.Stop()

	heartbeat := time.NewTicker(time.Minute)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("strategy-engine-stopping")
			return
		case <-heartbeat.C:
			e.logger.Info("strategy-engine-heartbeat",
				zap.Int64("ticks", e.tickCount.Load()),
				zap.Int64("signals", e.sigCount.Load()),
				zap.Int("tokens", e.cfg.Store.TokenCount()))
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick runs one evaluation pass: fan out over active strategies, gather
// their signals, order by edge, then risk-check and dispatch sequentially
// so earlier (better) signals consume budget first.
func (e *Engine) tick(ctx context.Context) {
	e.lastTickNs.Store(time.Now().UnixNano())
	e.tickCount.Add(1)

	if !e.cfg.Store.HasData() {
		return
	}

	timer := time.Now()

	var mu sync.Mutex
	var signals []types.TradeSignal

	g, _ := errgroup.WithContext(ctx)
	for _, strat := range e.strategies {
		if !strat.Active() {
			continue
		}
		g.Go(func() error {
			got := strat.Evaluate(e.cfg.Store)
			if len(got) > 0 {
				mu.Lock()
				signals = append(signals, got...)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // strategies never return errors; the group is for the fan-in

	EvalDuration.Observe(time.Since(timer).Seconds())

	if len(signals) == 0 {
		return
	}

	sort.SliceStable(signals, func(a, b int) bool {
		return signals[a].Edge > signals[b].Edge
	})

	for _, sig := range signals {
		e.sigCount.Add(1)
		SignalsTotal.WithLabelValues(sig.Strategy).Inc()

		if e.cfg.Publisher != nil {
			e.cfg.Publisher.PublishSignal(sig)
		}

		reservation, err := e.cfg.Risk.Check(&sig)
		if err != nil {
			SignalsRejectedTotal.WithLabelValues(sig.Strategy).Inc()
			e.logger.Debug("signal-rejected",
				zap.String("signal-id", sig.ID),
				zap.String("strategy", sig.Strategy),
				zap.Error(err))
			continue
		}

		e.logger.Info("signal-accepted",
			zap.String("signal-id", sig.ID),
			zap.String("strategy", sig.Strategy),
			zap.String("market", sig.Market),
			zap.Float64("edge", sig.Edge),
			zap.Float64("size", sig.Size()))

		e.cfg.Executor.Execute(ctx, sig, reservation)
	}
}

// LastTick returns when the engine last ticked, zero before the first tick.
func (e *Engine) LastTick() time.Time {
	ns := e.lastTickNs.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Stats returns tick and signal counters for the ops API.
func (e *Engine) Stats() (ticks, signals int64) {
	return e.tickCount.Load(), e.sigCount.Load()
}

// Close waits for the evaluation loop to exit.
func (e *Engine) Close() error {
	e.wg.Wait()
	return nil
}
