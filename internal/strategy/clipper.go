package strategy

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/pkg/types"
)

// Clipper is the fast top-of-book arbitrage strategy. It looks only at the
// two best asks of a pair, so it reacts a tick earlier than the depth walk
// but sizes conservatively to what both top levels display.
type Clipper struct {
	cfg    ClipperConfig
	logger *zap.Logger
}

// ClipperConfig holds strategy parameters.
type ClipperConfig struct {
	Enabled   bool
	MinProfit float64 // per-share profit floor, after fees
	FeeRate   float64
	Caps      SizingCaps
	Logger    *zap.Logger
}

// NewClipper creates the top-of-book arbitrage strategy.
func NewClipper(cfg ClipperConfig) *Clipper {
	return &Clipper{cfg: cfg, logger: cfg.Logger}
}

// Name implements Strategy.
func (c *Clipper) Name() string { return "clipper" }

// Active implements Strategy.
func (c *Clipper) Active() bool { return c.cfg.Enabled }

// Evaluate implements Strategy.
func (c *Clipper) Evaluate(store *marketdata.Store) []types.TradeSignal {
	var signals []types.TradeSignal

	for _, pair := range store.Pairs() {
		yesAsk, ok := store.BestAsk(pair.YesToken)
		if !ok {
			continue
		}
		noAsk, ok := store.BestAsk(pair.NoToken)
		if !ok {
			continue
		}

		costPerShare := yesAsk.Price + noAsk.Price
		profit := 1.0 - costPerShare - c.cfg.FeeRate
		EdgeObserved.WithLabelValues(c.Name()).Observe(profit)

		if profit < c.cfg.MinProfit {
			continue
		}

		// Size to what both top levels display; never assume hidden depth.
		size := yesAsk.Size
		if noAsk.Size < size {
			size = noAsk.Size
		}
		size = c.cfg.Caps.capSize(size, costPerShare)
		if size <= 0 {
			continue
		}

		c.logger.Debug("clipper-opportunity",
			zap.String("market", pair.Slug),
			zap.Float64("yes-ask", yesAsk.Price),
			zap.Float64("no-ask", noAsk.Price),
			zap.Float64("profit", profit),
			zap.Float64("size", size))

		signals = append(signals, types.TradeSignal{
			ID:       uuid.NewString(),
			Strategy: c.Name(),
			Kind:     types.SignalArbitrage,
			Market:   pair.Slug,
			Legs: []types.OrderIntent{
				{TokenID: pair.YesToken, Outcome: "YES", Side: types.SideBuy, Price: yesAsk.Price, Size: size},
				{TokenID: pair.NoToken, Outcome: "NO", Side: types.SideBuy, Price: noAsk.Price, Size: size},
			},
			Edge:      profit,
			CreatedAt: time.Now(),
		})
	}

	return signals
}
