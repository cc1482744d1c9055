package execution

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/pkg/types"
)

// PaperTrader simulates fills against live book depth. Each leg is priced by
// walking the book the same way the strategies do, so a paper fill costs what
// a taker order of that size would have cost at evaluation time.
type PaperTrader struct {
	store   *marketdata.Store
	feeRate float64
	logger  *zap.Logger

	mu     sync.Mutex
	trades int
	wins   int
	netPnL float64
}

// PaperStats is a snapshot of cumulative paper trading results.
type PaperStats struct {
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
	NetPnL  float64 `json:"net_pnl"`
}

// NewPaperTrader creates a paper trader over the given store.
func NewPaperTrader(store *marketdata.Store, feeRate float64, logger *zap.Logger) *PaperTrader {
	return &PaperTrader{store: store, feeRate: feeRate, logger: logger}
}

// Execute fills all legs of a signal, or none: if any leg lacks the depth to
// fill, the whole signal fails without fills. Fills are returned to the
// caller, which owns recording them against the position book.
func (p *PaperTrader) Execute(signal types.TradeSignal) []types.LegResult {
	now := time.Now()
	legs := make([]types.LegResult, len(signal.Legs))

	// Price every leg before filling any.
	vwaps := make([]types.VwapResult, len(signal.Legs))
	for i, intent := range signal.Legs {
		vwap, ok := p.store.VWAP(intent.TokenID, intent.Side, intent.Size)
		if !ok {
			for j := range signal.Legs {
				legs[j] = types.LegResult{
					Intent: signal.Legs[j],
					Status: types.OrderFailed,
				}
			}
			legs[i].Err = &types.OrderError{
				Code:    "INSUFFICIENT_DEPTH",
				Message: "book depth below signal size",
				Outcome: intent.Outcome,
			}
			PaperTradesTotal.WithLabelValues("no_depth").Inc()
			return legs
		}
		vwaps[i] = vwap
	}

	var totalCost, totalFees float64
	for i, intent := range signal.Legs {
		fill := &types.Fill{
			TokenID:   intent.TokenID,
			Outcome:   intent.Outcome,
			Side:      intent.Side,
			Price:     vwaps[i].Price,
			Size:      intent.Size,
			Fee:       p.feeRate * vwaps[i].Price * intent.Size,
			OrderID:   "paper-" + uuid.NewString(),
			Timestamp: now,
		}
		legs[i] = types.LegResult{
			Intent:  intent,
			Status:  types.OrderFilled,
			Fill:    fill,
			OrderID: fill.OrderID,
		}
		totalCost += fill.Notional()
		totalFees += fill.Fee
	}

	// An arbitrage pair pays out the signal size at resolution, so its paper
	// P&L is payout minus cost and fees. Single-leg snipes are marked at the
	// signal's expected edge since the payout depends on the resolution.
	pnl := signal.ExpectedProfit()
	if signal.Kind == types.SignalArbitrage && len(signal.Legs) == 2 {
		pnl = signal.Size() - totalCost - totalFees
	}

	p.mu.Lock()
	p.trades++
	if pnl > 0 {
		p.wins++
	}
	p.netPnL += pnl
	cumulative := p.netPnL
	p.mu.Unlock()

	PaperTradesTotal.WithLabelValues("filled").Inc()
	PaperNetPnL.Set(cumulative)

	p.logger.Info("paper-trade-executed",
		zap.String("signal-id", signal.ID),
		zap.String("strategy", signal.Strategy),
		zap.Float64("size", signal.Size()),
		zap.Float64("cost", totalCost),
		zap.Float64("fees", totalFees),
		zap.Float64("pnl", pnl),
		zap.Float64("cumulative-pnl", cumulative))

	return legs
}

// Stats returns cumulative paper trading results.
func (p *PaperTrader) Stats() PaperStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := PaperStats{Trades: p.trades, Wins: p.wins, NetPnL: p.netPnL}
	if p.trades > 0 {
		stats.WinRate = float64(p.wins) / float64(p.trades)
	}
	return stats
}
