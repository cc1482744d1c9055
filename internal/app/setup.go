package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/internal/circuitbreaker"
	"github.com/mselser95/polymarket-engine/internal/discovery"
	"github.com/mselser95/polymarket-engine/internal/events"
	"github.com/mselser95/polymarket-engine/internal/execution"
	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/internal/markets"
	"github.com/mselser95/polymarket-engine/internal/risk"
	"github.com/mselser95/polymarket-engine/internal/storage"
	"github.com/mselser95/polymarket-engine/internal/strategy"
	"github.com/mselser95/polymarket-engine/internal/telemetry"
	"github.com/mselser95/polymarket-engine/pkg/cache"
	"github.com/mselser95/polymarket-engine/pkg/config"
	"github.com/mselser95/polymarket-engine/pkg/healthprobe"
	"github.com/mselser95/polymarket-engine/pkg/httpserver"
	"github.com/mselser95/polymarket-engine/pkg/websocket"
)

// New creates a fully wired application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthprobe.New(),
		store:         marketdata.NewStore(),
		ctx:           ctx,
		cancel:        cancel,
	}
	a.engineCtx, a.engineCancel = context.WithCancel(ctx)

	a.wsManager = setupFeed(cfg, logger)
	a.ingestor = marketdata.NewIngestor(marketdata.IngestorConfig{
		Store:  a.store,
		Events: a.wsManager.Events(),
		Logger: logger,
	})

	discoverySvc, err := discovery.NewService(&discovery.Config{
		GammaURL:     cfg.PolymarketGammaURL,
		PollInterval: cfg.DiscoveryPollInterval,
		MarketLimit:  cfg.DiscoveryMarketLimit,
		Slugs:        cfg.MarketSlugs,
		Store:        a.store,
		Logger:       logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup discovery: %w", err)
	}
	a.discovery = discoverySvc

	a.riskManager = risk.New(risk.Config{
		MaxPosition:  cfg.RiskMaxPosition,
		MaxNotional:  cfg.RiskMaxNotional,
		MaxDailyLoss: cfg.RiskMaxDailyLoss,
		Logger:       logger,
	})

	if cfg.EventsEnabled {
		poller, pollerErr := setupEventFeed(cfg, logger)
		if pollerErr != nil {
			cancel()
			return nil, fmt.Errorf("setup event feed: %w", pollerErr)
		}
		a.events = poller
	}

	a.telemetry, err = telemetry.NewPublisher(ctx, &telemetry.Config{
		RedisURL:  cfg.RedisURL,
		QueueSize: 1024,
		Logger:    logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	a.recorder, err = setupRecorder(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	if err = a.setupExecution(cfg, logger); err != nil {
		cancel()
		return nil, fmt.Errorf("setup execution: %w", err)
	}

	// The order manager can cancel outstanding orders during an emergency
	// stop.
	a.riskManager.SetCanceller(a.execManager)

	var resolver strategy.Resolver
	if a.events != nil {
		resolver = a.events
	}
	a.engine = strategy.NewEngine(strategy.EngineConfig{
		Store:        a.store,
		Risk:         a.riskManager,
		Executor:     a.execManager,
		Publisher:    a.telemetry,
		EvalInterval: cfg.EvalInterval,
		Logger:       logger,
	}, setupStrategies(cfg, logger, resolver)...)

	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: a.healthChecker,
		Risk:          a.riskManager,
		Engine:        a.engine,
		Execution:     a.execManager,
		Breaker:       a.breaker,
	})

	return a, nil
}

func setupFeed(cfg *config.Config, logger *zap.Logger) *websocket.Manager {
	return websocket.New(websocket.Config{
		URL:                   cfg.PolymarketWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		Logger:                logger,
	})
}

func setupEventFeed(cfg *config.Config, logger *zap.Logger) (*events.Poller, error) {
	bindings, err := events.ParseBindings(cfg.EventsBindings)
	if err != nil {
		return nil, err
	}
	return events.NewPoller(events.Config{
		BaseURL:      cfg.EventsBaseURL,
		Leagues:      cfg.EventsLeagues,
		PollInterval: cfg.EventsPollInterval,
		Bindings:     bindings,
		Logger:       logger,
	}), nil
}

func setupRecorder(cfg *config.Config, logger *zap.Logger) (*storage.Recorder, error) {
	var store storage.Storage
	if cfg.StorageMode == "postgres" {
		pg, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		store = pg
	} else {
		store = storage.NewConsoleStorage(logger)
	}
	return storage.NewRecorder(store, 256, logger), nil
}

func (a *App) setupExecution(cfg *config.Config, logger *zap.Logger) error {
	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Window:           cfg.BreakerWindow,
		Cooldown:         cfg.BreakerCooldown,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("create circuit breaker: %w", err)
	}
	a.breaker = breaker

	managerCfg := &execution.ManagerConfig{
		Mode:    cfg.ExecutionMode,
		Risk:    a.riskManager,
		Breaker: breaker,
		Ticks:   setupMetadata(cfg, logger),
		Sinks:   []execution.ResultSink{a.telemetry, a.recorder},
		Logger:  logger,
	}

	switch cfg.ExecutionMode {
	case "live":
		signerPool, signerErr := execution.NewSignerPool(&execution.SignerConfig{
			PrivateKey:    cfg.PrivateKey,
			FunderAddress: cfg.FunderAddress,
			Workers:       cfg.SignerPoolSize,
			QueueDepth:    cfg.SignerQueueDepth,
			Logger:        logger,
		})
		if signerErr != nil {
			return fmt.Errorf("create signer pool: %w", signerErr)
		}
		a.signerPool = signerPool

		client, clientErr := execution.NewClient(&execution.ClientConfig{
			BaseURL:      cfg.PolymarketCLOBURL,
			APIKey:       cfg.PolymarketAPIKey,
			Secret:       cfg.PolymarketSecret,
			Passphrase:   cfg.PolymarketPassphrase,
			Address:      signerPool.Address(),
			OrderTimeout: cfg.OrderTimeout,
			Logger:       logger,
		})
		if clientErr != nil {
			return fmt.Errorf("create clob client: %w", clientErr)
		}
		managerCfg.Signer = signerPool
		managerCfg.Client = client

	case "paper":
		managerCfg.Paper = execution.NewPaperTrader(a.store, cfg.TakerFeeRate, logger)
	}

	a.execManager, err = execution.NewManager(managerCfg)
	if err != nil {
		return fmt.Errorf("create order manager: %w", err)
	}
	return nil
}

func setupMetadata(cfg *config.Config, logger *zap.Logger) execution.TickSizer {
	metaCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10_000,
		MaxItems:    1_000,
		Logger:      logger,
	})
	if err != nil {
		// Metadata caching is an optimization. Fall back to the default
		// tick size path instead of refusing to start.
		logger.Warn("metadata-cache-unavailable", zap.Error(err))
		return nil
	}
	client := markets.NewMetadataClient(&markets.MetadataConfig{
		BaseURL: cfg.PolymarketCLOBURL,
		Logger:  logger,
	})
	return markets.NewCachedMetadataClient(client, metaCache, 0)
}

func setupStrategies(cfg *config.Config, logger *zap.Logger, resolver strategy.Resolver) []strategy.Strategy {
	caps := strategy.SizingCaps{
		MaxPosition: cfg.RiskMaxPosition,
		MaxNotional: cfg.RiskMaxNotional,
	}

	var strategies []strategy.Strategy
	if cfg.SumTo100Enabled {
		strategies = append(strategies, strategy.NewSumTo100(strategy.SumTo100Config{
			Enabled:      true,
			MinEdge:      cfg.SumTo100MinEdge,
			TargetVolume: cfg.SumTo100TargetVolume,
			MaxBookAge:   cfg.SumTo100MaxBookAge,
			MinLiquidity: cfg.SumTo100MinLiquidity,
			FeeRate:      cfg.TakerFeeRate,
			Caps:         caps,
			Logger:       logger,
		}))
	}
	if cfg.ClipperEnabled {
		strategies = append(strategies, strategy.NewClipper(strategy.ClipperConfig{
			Enabled:   true,
			MinProfit: cfg.ClipperMinProfit,
			FeeRate:   cfg.TakerFeeRate,
			Caps:      caps,
			Logger:    logger,
		}))
	}
	if cfg.SniperEnabled && resolver != nil {
		strategies = append(strategies, strategy.NewSniper(strategy.SniperConfig{
			Enabled:   true,
			MinPrice:  cfg.SniperMinPrice,
			MaxPrice:  cfg.SniperMaxPrice,
			MinProfit: cfg.SniperMinProfit,
			MaxSize:   cfg.SniperMaxSize,
			FeeRate:   cfg.TakerFeeRate,
			Caps:      caps,
			Logger:    logger,
		}, resolver))
	}
	return strategies
}
