package strategy

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/pkg/types"
)

// SumTo100 is the depth-aware arbitrage strategy. For each registered pair
// it walks both ask sides to the target volume and fires when the two VWAPs
// plus fees sum below 1: buying both outcomes then pays out 1 per share at
// resolution regardless of outcome.
type SumTo100 struct {
	cfg    SumTo100Config
	logger *zap.Logger
}

// SumTo100Config holds strategy parameters.
type SumTo100Config struct {
	Enabled      bool
	MinEdge      float64       // per-share profit floor, after fees
	TargetVolume float64       // shares priced by the VWAP walk
	MaxBookAge   time.Duration // books older than this are not tradable
	MinLiquidity float64       // smallest size worth trading
	FeeRate      float64       // taker fee per dollar of notional
	Caps         SizingCaps
	Logger       *zap.Logger
}

// NewSumTo100 creates the depth arbitrage strategy.
func NewSumTo100(cfg SumTo100Config) *SumTo100 {
	return &SumTo100{cfg: cfg, logger: cfg.Logger}
}

// Name implements Strategy.
func (s *SumTo100) Name() string { return "sum_to_100" }

// Active implements Strategy.
func (s *SumTo100) Active() bool { return s.cfg.Enabled }

// Evaluate implements Strategy.
func (s *SumTo100) Evaluate(store *marketdata.Store) []types.TradeSignal {
	var signals []types.TradeSignal

	for _, pair := range store.Pairs() {
		sig, ok := s.evaluatePair(store, pair)
		if !ok {
			continue
		}
		signals = append(signals, sig)
	}

	return signals
}

func (s *SumTo100) evaluatePair(store *marketdata.Store, pair types.MarketPair) (types.TradeSignal, bool) {
	if stale(store, pair.YesToken, s.cfg.MaxBookAge) || stale(store, pair.NoToken, s.cfg.MaxBookAge) {
		EvaluationsSkipped.WithLabelValues(s.Name(), "stale_book").Inc()
		return types.TradeSignal{}, false
	}

	yes, ok := store.VWAP(pair.YesToken, types.SideBuy, s.cfg.TargetVolume)
	if !ok {
		EvaluationsSkipped.WithLabelValues(s.Name(), "insufficient_depth").Inc()
		return types.TradeSignal{}, false
	}
	no, ok := store.VWAP(pair.NoToken, types.SideBuy, s.cfg.TargetVolume)
	if !ok {
		EvaluationsSkipped.WithLabelValues(s.Name(), "insufficient_depth").Inc()
		return types.TradeSignal{}, false
	}

	costPerShare := yes.Price + no.Price
	edge := 1.0 - costPerShare - s.cfg.FeeRate
	EdgeObserved.WithLabelValues(s.Name()).Observe(edge)

	if edge < s.cfg.MinEdge {
		return types.TradeSignal{}, false
	}

	size := s.cfg.Caps.capSize(s.cfg.TargetVolume, costPerShare)
	if size < s.cfg.MinLiquidity {
		EvaluationsSkipped.WithLabelValues(s.Name(), "below_min_liquidity").Inc()
		return types.TradeSignal{}, false
	}

	s.logger.Debug("sum-to-100-opportunity",
		zap.String("market", pair.Slug),
		zap.Float64("vwap-yes", yes.Price),
		zap.Float64("vwap-no", no.Price),
		zap.Float64("edge", edge),
		zap.Float64("size", size))

	return types.TradeSignal{
		ID:       uuid.NewString(),
		Strategy: s.Name(),
		Kind:     types.SignalArbitrage,
		Market:   pair.Slug,
		Legs: []types.OrderIntent{
			{TokenID: pair.YesToken, Outcome: "YES", Side: types.SideBuy, Price: yes.Price, Size: size},
			{TokenID: pair.NoToken, Outcome: "NO", Side: types.SideBuy, Price: no.Price, Size: size},
		},
		Edge:      edge,
		CreatedAt: time.Now(),
	}, true
}

func stale(store *marketdata.Store, tokenID string, maxAge time.Duration) bool {
	age, ok := store.Age(tokenID)
	if !ok {
		return true
	}
	return age > maxAge
}
