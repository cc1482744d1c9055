package discovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/pkg/types"
)

// Config holds the settings for the discovery service.
type Config struct {
	GammaURL     string
	PollInterval time.Duration
	MarketLimit  int
	Slugs        []string // explicit market slugs; empty discovers by volume
	Store        *marketdata.Store
	Logger       *zap.Logger
}

// Service discovers tradeable binary markets. It polls the Gamma API,
// extracts YES/NO token pairs, registers them in the market data store,
// and emits pairs it has not seen before so the feed handler can
// subscribe to their books.
type Service struct {
	client       *Client
	store        *marketdata.Store
	pollInterval time.Duration
	marketLimit  int
	slugs        []string
	logger       *zap.Logger

	seen       map[string]struct{}
	newPairsCh chan types.MarketPair
}

// NewService creates a discovery service.
func NewService(cfg *Config) (*Service, error) {
	if cfg.GammaURL == "" {
		return nil, fmt.Errorf("gamma URL is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("market data store is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	return &Service{
		client:       NewClient(cfg.GammaURL, cfg.Logger),
		store:        cfg.Store,
		pollInterval: cfg.PollInterval,
		marketLimit:  cfg.MarketLimit,
		slugs:        cfg.Slugs,
		logger:       cfg.Logger,
		seen:         make(map[string]struct{}),
		newPairsCh:   make(chan types.MarketPair, 256),
	}, nil
}

// NewPairs returns the channel of newly discovered pairs.
func (s *Service) NewPairs() <-chan types.MarketPair {
	return s.newPairsCh
}

// Run polls until the context is cancelled. The first poll happens
// immediately so the engine has markets before the first tick.
func (s *Service) Run(ctx context.Context) error {
	if err := s.poll(ctx); err != nil {
		s.logger.Warn("initial-discovery-poll-failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.poll(ctx); err != nil {
				s.logger.Warn("discovery-poll-failed", zap.Error(err))
			}
		}
	}
}

func (s *Service) poll(ctx context.Context) error {
	start := time.Now()

	var (
		markets []types.Market
		err     error
	)
	if len(s.slugs) > 0 {
		markets, err = s.client.FetchMarketsBySlugs(ctx, s.slugs)
	} else {
		markets, err = s.client.FetchActiveMarkets(ctx, s.marketLimit)
	}
	if err != nil {
		PollErrorsTotal.Inc()
		return fmt.Errorf("fetch markets: %w", err)
	}

	PollDuration.Observe(time.Since(start).Seconds())
	MarketsFetched.Set(float64(len(markets)))

	discovered := 0
	for i := range markets {
		pair, ok := s.pairFromMarket(&markets[i])
		if !ok {
			continue
		}
		if _, dup := s.seen[pair.Market]; dup {
			continue
		}
		s.seen[pair.Market] = struct{}{}
		s.store.RegisterPair(pair)
		PairsDiscoveredTotal.Inc()
		discovered++

		select {
		case s.newPairsCh <- pair:
		default:
			s.logger.Warn("new-pairs-channel-full",
				zap.String("market", pair.Market))
		}
	}

	if discovered > 0 {
		s.logger.Info("markets-discovered",
			zap.Int("new_pairs", discovered),
			zap.Int("total_pairs", len(s.seen)))
	}
	return nil
}

// pairFromMarket extracts a YES/NO pair from a binary market. Markets
// that are closed, inactive, or missing either outcome token are skipped.
func (s *Service) pairFromMarket(m *types.Market) (types.MarketPair, bool) {
	if m.Closed || !m.Active {
		return types.MarketPair{}, false
	}
	yes := m.TokenByOutcome("YES")
	no := m.TokenByOutcome("NO")
	if yes == nil || no == nil {
		return types.MarketPair{}, false
	}
	if yes.TokenID == "" || no.TokenID == "" {
		return types.MarketPair{}, false
	}
	return types.MarketPair{
		Market:   m.ID,
		Slug:     m.Slug,
		Question: m.Question,
		YesToken: yes.TokenID,
		NoToken:  no.TokenID,
	}, true
}
