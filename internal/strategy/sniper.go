package strategy

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/internal/events"
	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/pkg/types"
)

// Resolver supplies decided external events. Implemented by events.Poller.
type Resolver interface {
	Resolutions() []events.Resolution
}

// Sniper buys the winning token of a decided event while the market still
// prices it inside the configured window. Below MinPrice the feed disagrees
// with the market too much to trust; above MaxPrice the remaining profit is
// not worth the fill risk.
type Sniper struct {
	cfg      SniperConfig
	resolver Resolver
	logger   *zap.Logger

	mu    sync.Mutex
	fired map[string]bool // event id -> already acted
}

// SniperConfig holds strategy parameters.
type SniperConfig struct {
	Enabled   bool
	MinPrice  float64
	MaxPrice  float64
	MinProfit float64 // expected dollars at resolution
	MaxSize   float64 // shares per snipe
	FeeRate   float64
	Caps      SizingCaps
	Logger    *zap.Logger
}

// NewSniper creates the event snipe strategy.
func NewSniper(cfg SniperConfig, resolver Resolver) *Sniper {
	return &Sniper{
		cfg:      cfg,
		resolver: resolver,
		logger:   cfg.Logger,
		fired:    make(map[string]bool),
	}
}

// Name implements Strategy.
func (s *Sniper) Name() string { return "sniper" }

// Active implements Strategy.
func (s *Sniper) Active() bool { return s.cfg.Enabled && s.resolver != nil }

// Evaluate implements Strategy.
func (s *Sniper) Evaluate(store *marketdata.Store) []types.TradeSignal {
	var signals []types.TradeSignal

	for _, res := range s.resolver.Resolutions() {
		if !res.Final {
			continue
		}

		s.mu.Lock()
		fired := s.fired[res.EventID]
		s.mu.Unlock()
		if fired {
			continue
		}

		sig, ok := s.evaluateResolution(store, res)
		if !ok {
			continue
		}

		s.mu.Lock()
		s.fired[res.EventID] = true
		s.mu.Unlock()

		signals = append(signals, sig)
	}

	return signals
}

func (s *Sniper) evaluateResolution(store *marketdata.Store, res events.Resolution) (types.TradeSignal, bool) {
	ask, ok := store.BestAsk(res.WinningToken)
	if !ok {
		EvaluationsSkipped.WithLabelValues(s.Name(), "no_book").Inc()
		return types.TradeSignal{}, false
	}

	// Strict window: a price at either bound is not tradable.
	if ask.Price <= s.cfg.MinPrice || ask.Price >= s.cfg.MaxPrice {
		EvaluationsSkipped.WithLabelValues(s.Name(), "outside_price_window").Inc()
		return types.TradeSignal{}, false
	}

	size := ask.Size
	if size > s.cfg.MaxSize {
		size = s.cfg.MaxSize
	}
	size = s.cfg.Caps.capSize(size, ask.Price)
	if size <= 0 {
		return types.TradeSignal{}, false
	}

	// Winner pays out 1 per share at resolution.
	edge := 1.0 - ask.Price - s.cfg.FeeRate
	if edge*size < s.cfg.MinProfit {
		EvaluationsSkipped.WithLabelValues(s.Name(), "below_min_profit").Inc()
		return types.TradeSignal{}, false
	}

	pair, _ := store.PairForToken(res.WinningToken)

	s.logger.Info("snipe-opportunity",
		zap.String("event-id", res.EventID),
		zap.String("token-id", res.WinningToken),
		zap.Float64("ask", ask.Price),
		zap.Float64("size", size),
		zap.Float64("expected-profit", edge*size))

	outcome := "YES"
	if pair.NoToken == res.WinningToken {
		outcome = "NO"
	}

	return types.TradeSignal{
		ID:       uuid.NewString(),
		Strategy: s.Name(),
		Kind:     types.SignalSnipe,
		Market:   pair.Slug,
		Legs: []types.OrderIntent{
			{TokenID: res.WinningToken, Outcome: outcome, Side: types.SideBuy, Price: ask.Price, Size: size},
		},
		Edge:      edge,
		CreatedAt: time.Now(),
	}, true
}
