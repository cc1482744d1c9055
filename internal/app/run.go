package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/internal/risk"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("engine-starting",
		zap.String("mode", a.cfg.ExecutionMode),
		zap.Duration("eval-interval", a.cfg.EvalInterval),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("engine-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("ws-url", a.cfg.PolymarketWSURL))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	a.wg.Add(1)
	go a.runHTTPServer()

	if err := a.telemetry.Start(a.ctx); err != nil {
		return fmt.Errorf("start telemetry: %w", err)
	}
	if err := a.recorder.Start(a.ctx); err != nil {
		return fmt.Errorf("start storage recorder: %w", err)
	}

	a.riskManager.StartDailyReset(a.ctx)

	if a.signerPool != nil {
		if err := a.signerPool.Start(a.ctx); err != nil {
			return fmt.Errorf("start signer pool: %w", err)
		}
	}

	if a.events != nil {
		if err := a.events.Start(a.ctx); err != nil {
			return fmt.Errorf("start event feed: %w", err)
		}
	}

	if err := a.wsManager.Start(); err != nil {
		return fmt.Errorf("start websocket manager: %w", err)
	}
	if err := a.ingestor.Start(a.ctx); err != nil {
		return fmt.Errorf("start market data ingestor: %w", err)
	}

	a.wg.Add(3)
	go a.runDiscovery()
	go a.subscribeNewPairs()
	go a.reportState()

	if err := a.engine.Start(a.engineCtx); err != nil {
		return fmt.Errorf("start strategy engine: %w", err)
	}

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runDiscovery() {
	defer a.wg.Done()
	err := a.discovery.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("discovery-error", zap.Error(err))
	}
}

// subscribeNewPairs subscribes the feed to the books of every pair the
// discovery service finds.
func (a *App) subscribeNewPairs() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case pair := <-a.discovery.NewPairs():
			err := a.wsManager.Subscribe(a.ctx, []string{pair.YesToken, pair.NoToken})
			if err != nil {
				a.logger.Warn("pair-subscribe-failed",
					zap.String("market", pair.Market),
					zap.Error(err))
				continue
			}
			a.logger.Info("pair-subscribed",
				zap.String("market", pair.Market),
				zap.String("slug", pair.Slug))
		}
	}
}

// reportState publishes an engine snapshot to the state channel every few
// seconds so operators can watch the engine without scraping metrics.
func (a *App) reportState() {
	defer a.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			ticks, signals := a.engine.Stats()
			snapshot := a.riskManager.Snapshot()
			a.telemetry.PublishState(map[string]interface{}{
				"mode":           a.cfg.ExecutionMode,
				"at":             time.Now().UTC(),
				"feed_connected": a.wsManager.Connected(),
				"tokens_tracked": a.store.TokenCount(),
				"ticks":          ticks,
				"signals":        signals,
				"daily_pnl":      snapshot.DailyPnL,
				"unrealized_pnl": a.unrealizedPnL(snapshot),
				"stopped":        snapshot.Stopped,
				"positions":      len(snapshot.Positions),
			})
		}
	}
}

// unrealizedPnL marks open positions to the current mid. Tokens with no
// live book contribute nothing.
func (a *App) unrealizedPnL(snapshot risk.Snapshot) float64 {
	total := 0.0
	for _, pos := range snapshot.Positions {
		if pos.Size <= 0 {
			continue
		}
		mid, ok := a.store.MidPrice(pos.TokenID)
		if !ok {
			continue
		}
		total += (mid - pos.AvgEntry) * pos.Size
	}
	return total
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
