// Package app wires the trading engine together: market data feed, strategy
// engine, risk manager, order manager, telemetry and the ops HTTP server.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/internal/circuitbreaker"
	"github.com/mselser95/polymarket-engine/internal/discovery"
	"github.com/mselser95/polymarket-engine/internal/events"
	"github.com/mselser95/polymarket-engine/internal/execution"
	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/internal/risk"
	"github.com/mselser95/polymarket-engine/internal/storage"
	"github.com/mselser95/polymarket-engine/internal/strategy"
	"github.com/mselser95/polymarket-engine/internal/telemetry"
	"github.com/mselser95/polymarket-engine/pkg/config"
	"github.com/mselser95/polymarket-engine/pkg/healthprobe"
	"github.com/mselser95/polymarket-engine/pkg/httpserver"
	"github.com/mselser95/polymarket-engine/pkg/websocket"
)

// App is the engine orchestrator. It owns every component's lifecycle.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	store     *marketdata.Store
	wsManager *websocket.Manager
	ingestor  *marketdata.Ingestor
	discovery *discovery.Service
	events    *events.Poller // nil unless the event feed is enabled

	riskManager *risk.Manager
	breaker     *circuitbreaker.Breaker
	signerPool  *execution.SignerPool // nil outside live mode
	execManager *execution.Manager
	engine      *strategy.Engine

	telemetry *telemetry.Publisher
	recorder  *storage.Recorder

	ctx    context.Context
	cancel context.CancelFunc

	// The engine runs on its own child context so shutdown can stop signal
	// generation first, before the feed and sinks are torn down.
	engineCtx    context.Context
	engineCancel context.CancelFunc

	wg sync.WaitGroup
}
