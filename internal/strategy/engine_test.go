package strategy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/internal/risk"
	"github.com/mselser95/polymarket-engine/pkg/types"
)

// stubStrategy emits a fixed signal set on every tick.
type stubStrategy struct {
	name    string
	signals []types.TradeSignal
}

func (s *stubStrategy) Name() string    { return s.name }
func (s *stubStrategy) Active() bool    { return true }
func (s *stubStrategy) Evaluate(*marketdata.Store) []types.TradeSignal {
	return s.signals
}

// recordingExecutor remembers the order signals arrived in.
type recordingExecutor struct {
	mu       sync.Mutex
	received []types.TradeSignal
}

func (r *recordingExecutor) Execute(_ context.Context, sig types.TradeSignal, res *risk.Reservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, sig)
	if res != nil {
		res.Release()
	}
}

func (r *recordingExecutor) signals() []types.TradeSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.TradeSignal, len(r.received))
	copy(out, r.received)
	return out
}

func signalWithEdge(id string, edge float64) types.TradeSignal {
	return types.TradeSignal{
		ID:       id,
		Strategy: "stub",
		Kind:     types.SignalArbitrage,
		Legs: []types.OrderIntent{
			{TokenID: "tok-" + id, Outcome: "YES", Side: types.SideBuy, Price: 0.40, Size: 10},
		},
		Edge:      edge,
		CreatedAt: time.Now(),
	}
}

func populatedStore(t *testing.T) *marketdata.Store {
	t.Helper()

	store := marketdata.NewStore()
	store.Update(&types.OrderBook{
		TokenID:   "tok-any",
		Timestamp: 1,
		Asks:      []types.Level{{Price: 0.50, Size: 10}},
		Received:  time.Now(),
	})
	return store
}

func newRisk(t *testing.T) *risk.Manager {
	t.Helper()

	return risk.New(risk.Config{
		MaxPosition:  1000,
		MaxNotional:  5000,
		MaxDailyLoss: 1000,
		Logger:       zaptest.NewLogger(t),
	})
}

func TestEngine_DispatchesSignalsBestEdgeFirst(t *testing.T) {
	t.Parallel()

	exec := &recordingExecutor{}
	engine := NewEngine(EngineConfig{
		Store:        populatedStore(t),
		Risk:         newRisk(t),
		Executor:     exec,
		EvalInterval: 10 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	},
		&stubStrategy{name: "a", signals: []types.TradeSignal{
			signalWithEdge("low", 0.004),
			signalWithEdge("high", 0.060),
		}},
		&stubStrategy{name: "b", signals: []types.TradeSignal{
			signalWithEdge("mid", 0.020),
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, engine.Start(ctx))

	deadline := time.After(2 * time.Second)
	for len(exec.signals()) < 3 {
		select {
		case <-deadline:
			t.Fatal("executor never received signals")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	require.NoError(t, engine.Close())

	got := exec.signals()[:3]
	assert.Equal(t, "high", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "low", got[2].ID)
}

func TestEngine_SkipsTicksWithoutMarketData(t *testing.T) {
	t.Parallel()

	exec := &recordingExecutor{}
	engine := NewEngine(EngineConfig{
		Store:        marketdata.NewStore(), // empty
		Risk:         newRisk(t),
		Executor:     exec,
		EvalInterval: 5 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	},
		&stubStrategy{name: "a", signals: []types.TradeSignal{signalWithEdge("x", 0.05)}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, engine.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, engine.Close())

	assert.Empty(t, exec.signals())
	ticks, _ := engine.Stats()
	assert.Greater(t, ticks, int64(0), "engine still ticks, it just skips evaluation")
}

func TestEngine_RejectedSignalsDoNotReachExecutor(t *testing.T) {
	t.Parallel()

	riskMgr := newRisk(t)
	riskMgr.EmergencyStop(context.Background(), "test halt")

	exec := &recordingExecutor{}
	engine := NewEngine(EngineConfig{
		Store:        populatedStore(t),
		Risk:         riskMgr,
		Executor:     exec,
		EvalInterval: 5 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	},
		&stubStrategy{name: "a", signals: []types.TradeSignal{signalWithEdge("x", 0.05)}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, engine.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, engine.Close())

	assert.Empty(t, exec.signals())
	_, sigCount := engine.Stats()
	assert.Greater(t, sigCount, int64(0), "signals were produced, then rejected")
}

func TestEngine_LastTickAdvances(t *testing.T) {
	t.Parallel()

	engine := NewEngine(EngineConfig{
		Store:        populatedStore(t),
		Risk:         newRisk(t),
		Executor:     &recordingExecutor{},
		EvalInterval: 5 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	})

	assert.True(t, engine.LastTick().IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, engine.Start(ctx))

	deadline := time.After(2 * time.Second)
	for engine.LastTick().IsZero() {
		select {
		case <-deadline:
			t.Fatal("engine never ticked")
		case <-time.After(2 * time.Millisecond):
		}
	}
	cancel()
	require.NoError(t, engine.Close())
}
