package risk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	return New(Config{
		MaxPosition:  100,
		MaxNotional:  500,
		MaxDailyLoss: 200,
		Logger:       zaptest.NewLogger(t),
	})
}

func arbSignal(size, yesPrice, noPrice float64) *types.TradeSignal {
	return &types.TradeSignal{
		ID:       "sig-1",
		Strategy: "sum_to_100",
		Kind:     types.SignalArbitrage,
		Market:   "0xm",
		Legs: []types.OrderIntent{
			{TokenID: "tok-yes", Outcome: "YES", Side: types.SideBuy, Price: yesPrice, Size: size},
			{TokenID: "tok-no", Outcome: "NO", Side: types.SideBuy, Price: noPrice, Size: size},
		},
		Edge:      1 - yesPrice - noPrice - 0.01,
		CreatedAt: time.Now(),
	}
}

func TestManager_CheckAcceptsWithinLimits(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	res, err := m.Check(arbSignal(50, 0.45, 0.48))
	require.NoError(t, err)
	require.NotNil(t, res)
	res.Release()
}

func TestManager_CheckRejectsNotional(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	// 600 shares at 0.93 per pair is 558 notional, over the 500 limit.
	sig := arbSignal(600, 0.45, 0.48)

	_, err := m.Check(sig)
	require.Error(t, err)

	var rej *types.RiskRejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "notional", rej.Rule)
	assert.Equal(t, types.ErrClassPolicy, types.Classify(err))
}

func TestManager_CheckRejectsPosition(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	m.RecordFill(types.Fill{
		TokenID: "tok-yes", Outcome: "YES", Side: types.SideBuy,
		Price: 0.45, Size: 80, Timestamp: time.Now(),
	})

	_, err := m.Check(arbSignal(30, 0.45, 0.48))
	require.Error(t, err)

	var rej *types.RiskRejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "position", rej.Rule)
}

func TestManager_ReservationsCountAgainstPosition(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	// First signal reserves 60 of the 100-share budget.
	res, err := m.Check(arbSignal(60, 0.40, 0.40))
	require.NoError(t, err)

	// Second signal would push tok-yes to 120 in-flight; rejected even though
	// nothing has filled yet.
	_, err = m.Check(arbSignal(60, 0.40, 0.40))
	require.Error(t, err)
	var rej *types.RiskRejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "position", rej.Rule)

	// Releasing the escrow frees the budget again.
	res.Release()
	res2, err := m.Check(arbSignal(60, 0.40, 0.40))
	require.NoError(t, err)
	res2.Release()
}

func TestManager_ReservationSettlementIsIdempotent(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	res, err := m.Check(arbSignal(40, 0.40, 0.40))
	require.NoError(t, err)

	res.Release()
	res.Release()
	res.Commit()

	// Budget was returned exactly once.
	snap := m.Snapshot()
	assert.Zero(t, snap.ReservedValue)
}

func TestManager_DailyLossHaltsNewTrades(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	// Buy 400 at 0.60, sell 400 at 0.10: realized -200, at the limit.
	m.RecordFill(types.Fill{TokenID: "t", Side: types.SideBuy, Price: 0.60, Size: 400, Timestamp: time.Now()})
	m.RecordFill(types.Fill{TokenID: "t", Side: types.SideSell, Price: 0.10, Size: 400, Timestamp: time.Now()})

	require.InDelta(t, -200, m.DailyPnL(), 1e-6)

	_, err := m.Check(arbSignal(10, 0.45, 0.48))
	require.Error(t, err)
	var rej *types.RiskRejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "daily_loss", rej.Rule)

	// Reset clears the limit.
	m.ResetDaily()
	res, err := m.Check(arbSignal(10, 0.45, 0.48))
	require.NoError(t, err)
	res.Release()
}

type fakeCanceller struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeCanceller) CancelAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func TestManager_EmergencyStop(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	canceller := &fakeCanceller{}
	m.SetCanceller(canceller)

	m.EmergencyStop(context.Background(), "unwind failed")
	assert.True(t, m.Stopped())
	assert.Equal(t, "unwind failed", m.StopReason())

	_, err := m.Check(arbSignal(10, 0.45, 0.48))
	require.Error(t, err)
	var rej *types.RiskRejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "emergency_stop", rej.Rule)

	// Idempotent: second stop does not cancel again.
	m.EmergencyStop(context.Background(), "again")
	canceller.mu.Lock()
	assert.Equal(t, 1, canceller.calls)
	canceller.mu.Unlock()
	assert.Equal(t, "unwind failed", m.StopReason())

	m.Resume()
	assert.False(t, m.Stopped())
	res, err := m.Check(arbSignal(10, 0.45, 0.48))
	require.NoError(t, err)
	res.Release()
}

func TestManager_RecordFillTracksPositionAndPnL(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	m.RecordFill(types.Fill{TokenID: "t", Outcome: "YES", Side: types.SideBuy, Price: 0.40, Size: 50, Timestamp: time.Now()})
	m.RecordFill(types.Fill{TokenID: "t", Outcome: "YES", Side: types.SideBuy, Price: 0.50, Size: 50, Timestamp: time.Now()})

	pos := m.Position("t")
	assert.Equal(t, 100.0, pos.Size)
	assert.InDelta(t, 0.45, pos.AvgEntry, 1e-9)

	// Sell half at 0.55: realized (0.55-0.45)*50 = 5.
	m.RecordFill(types.Fill{TokenID: "t", Outcome: "YES", Side: types.SideSell, Price: 0.55, Size: 50, Timestamp: time.Now()})
	pos = m.Position("t")
	assert.Equal(t, 50.0, pos.Size)
	assert.InDelta(t, 5.0, pos.Realized, 1e-9)
	assert.InDelta(t, 5.0, m.DailyPnL(), 1e-6)

	// Fees reduce P&L even on buys.
	m.RecordFill(types.Fill{TokenID: "t2", Side: types.SideBuy, Price: 0.30, Size: 10, Fee: 0.03, Timestamp: time.Now()})
	assert.InDelta(t, 4.97, m.DailyPnL(), 1e-6)
}

func TestManager_SnapshotReflectsState(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	m.RecordFill(types.Fill{TokenID: "t", Outcome: "YES", Side: types.SideBuy, Price: 0.40, Size: 20, Timestamp: time.Now()})

	res, err := m.Check(arbSignal(10, 0.45, 0.48))
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.False(t, snap.Stopped)
	assert.Len(t, snap.Positions, 1)
	assert.InDelta(t, 10*(0.45+0.48), snap.ReservedValue, 1e-9)
	assert.Equal(t, int64(1), snap.DailyTrades)

	res.Release()
	snap = m.Snapshot()
	assert.Zero(t, snap.ReservedValue)
}

func TestManager_ConcurrentChecksNeverOvershoot(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	var wg sync.WaitGroup
	accepted := make(chan *Reservation, 32)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.Check(arbSignal(30, 0.40, 0.40))
			if err == nil {
				accepted <- res
			}
		}()
	}
	wg.Wait()
	close(accepted)

	var total float64
	for res := range accepted {
		total += 30
		res.Release()
	}
	assert.LessOrEqual(t, total, 100.0, "accepted in-flight size exceeded the position limit")
	assert.Greater(t, total, 0.0)
}
