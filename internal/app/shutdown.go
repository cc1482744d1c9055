package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown stops the engine. Signal generation stops first so nothing new
// enters the execution path while it drains, then the feed, then the sinks.
func (a *App) Shutdown() error {
	a.logger.Info("engine-shutting-down")

	a.healthChecker.SetReady(false)

	// Stop signal generation first: cancel only the engine's context, wait
	// for the evaluation loop to exit, then tear down everything else.
	a.engineCancel()
	if err := a.engine.Close(); err != nil {
		a.logger.Error("strategy-engine-close-error", zap.Error(err))
	}

	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	if a.signerPool != nil {
		if err := a.signerPool.Close(); err != nil {
			a.logger.Error("signer-pool-close-error", zap.Error(err))
		}
	}

	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Error("event-feed-close-error", zap.Error(err))
		}
	}

	if err := a.wsManager.Close(); err != nil {
		a.logger.Error("websocket-manager-close-error", zap.Error(err))
	}
	if err := a.ingestor.Close(); err != nil {
		a.logger.Error("market-data-ingestor-close-error", zap.Error(err))
	}

	// Sinks last so every completed execution is recorded.
	if err := a.recorder.Close(); err != nil {
		a.logger.Error("storage-recorder-close-error", zap.Error(err))
	}
	if err := a.telemetry.Close(); err != nil {
		a.logger.Error("telemetry-close-error", zap.Error(err))
	}

	if err := a.riskManager.Close(); err != nil {
		a.logger.Error("risk-manager-close-error", zap.Error(err))
	}

	a.wg.Wait()

	a.logger.Info("engine-shutdown-complete")
	return nil
}
