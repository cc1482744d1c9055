package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/pkg/types"
)

func paperStore(t *testing.T) *marketdata.Store {
	t.Helper()

	store := marketdata.NewStore()
	now := time.Now()
	store.Update(&types.OrderBook{
		TokenID: "tok-yes",
		Asks: []types.Level{
			{Price: 0.45, Size: 50},
			{Price: 0.46, Size: 50},
		},
		Timestamp: now.UnixMilli(),
		Received:  now,
	})
	store.Update(&types.OrderBook{
		TokenID:   "tok-no",
		Asks:      []types.Level{{Price: 0.48, Size: 100}},
		Timestamp: now.UnixMilli(),
		Received:  now,
	})
	return store
}

func TestPaperTraderFillsAtDepthPrice(t *testing.T) {
	t.Parallel()

	trader := NewPaperTrader(paperStore(t), 0.01, zaptest.NewLogger(t))
	legs := trader.Execute(testSignal())

	require.Len(t, legs, 2)
	for _, leg := range legs {
		assert.Equal(t, types.OrderFilled, leg.Status)
		require.NotNil(t, leg.Fill)
	}

	// The YES leg walks two levels: 50@0.45 + 50@0.46.
	assert.InDelta(t, 0.455, legs[0].Fill.Price, 1e-9)
	assert.InDelta(t, 0.48, legs[1].Fill.Price, 1e-9)
	assert.InDelta(t, 0.01*0.455*100, legs[0].Fill.Fee, 1e-9)

	stats := trader.Stats()
	assert.Equal(t, 1, stats.Trades)
	// Payout 100 minus cost 93.5 minus fees 0.935.
	assert.InDelta(t, 100-93.5-0.935, stats.NetPnL, 1e-6)
	assert.Equal(t, 1, stats.Wins)
	assert.InDelta(t, 1.0, stats.WinRate, 1e-9)
}

func TestPaperTraderAllOrNothing(t *testing.T) {
	t.Parallel()

	store := paperStore(t)
	trader := NewPaperTrader(store, 0.01, zaptest.NewLogger(t))

	signal := testSignal()
	signal.Legs[1].Size = 500 // deeper than the NO book
	signal.Legs[0].Size = 500

	legs := trader.Execute(signal)
	require.Len(t, legs, 2)
	for _, leg := range legs {
		assert.Equal(t, types.OrderFailed, leg.Status)
		assert.Nil(t, leg.Fill)
	}

	assert.Zero(t, trader.Stats().Trades)
}

func TestPaperTraderMissingBookFails(t *testing.T) {
	t.Parallel()

	trader := NewPaperTrader(marketdata.NewStore(), 0.01, zaptest.NewLogger(t))
	legs := trader.Execute(testSignal())

	require.Len(t, legs, 2)
	assert.Equal(t, types.OrderFailed, legs[0].Status)
	require.Error(t, legs[0].Err)
	assert.Empty(t, trader.Stats().Trades)
}
