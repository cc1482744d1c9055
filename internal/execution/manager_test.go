package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/polymarket-engine/internal/circuitbreaker"
	"github.com/mselser95/polymarket-engine/internal/marketdata"
	"github.com/mselser95/polymarket-engine/internal/risk"
	"github.com/mselser95/polymarket-engine/pkg/types"
)

type fakeSigner struct {
	err    error
	signed []types.OrderIntent
	mu     sync.Mutex
}

func (f *fakeSigner) Sign(_ context.Context, intent types.OrderIntent) (*types.SignedOrderJSON, error) {
	f.mu.Lock()
	f.signed = append(f.signed, intent)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	side := "BUY"
	if intent.Side == types.SideSell {
		side = "SELL"
	}
	return &types.SignedOrderJSON{TokenID: intent.TokenID, Side: side}, nil
}

// fakeClob scripts one response per submission, in order.
type fakeClob struct {
	mu         sync.Mutex
	responses  []submitScript
	submitted  []*types.SignedOrderJSON
	cancelled  []string
	cancelAlls int
}

type submitScript struct {
	resp *types.OrderSubmissionResponse
	err  error
}

func (f *fakeClob) SubmitOrder(_ context.Context, order *types.SignedOrderJSON, _ string) (*types.OrderSubmissionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitted = append(f.submitted, order)
	if len(f.responses) == 0 {
		return &types.OrderSubmissionResponse{Success: true, OrderID: "ord-default", Status: "matched"}, nil
	}
	script := f.responses[0]
	f.responses = f.responses[1:]
	return script.resp, script.err
}

func (f *fakeClob) CancelOrder(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeClob) CancelAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelAlls++
	return nil
}

type captureSink struct {
	mu      sync.Mutex
	results []*types.ExecutionResult
}

func (c *captureSink) PublishTrade(result *types.ExecutionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

func (c *captureSink) last() *types.ExecutionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.results) == 0 {
		return nil
	}
	return c.results[len(c.results)-1]
}

func testRisk(t *testing.T) *risk.Manager {
	t.Helper()
	return risk.New(risk.Config{
		MaxPosition:  1000,
		MaxNotional:  1000,
		MaxDailyLoss: 1000,
		Logger:       zaptest.NewLogger(t),
	})
}

func testSignal() types.TradeSignal {
	return types.TradeSignal{
		ID:       "sig-1",
		Strategy: "sum_to_100",
		Kind:     types.SignalArbitrage,
		Market:   "0xm",
		Legs: []types.OrderIntent{
			{TokenID: "tok-yes", Outcome: "YES", Side: types.SideBuy, Price: 0.45, Size: 100},
			{TokenID: "tok-no", Outcome: "NO", Side: types.SideBuy, Price: 0.48, Size: 100},
		},
		Edge:      0.06,
		CreatedAt: time.Now(),
	}
}

func reserve(t *testing.T, riskMgr *risk.Manager, signal types.TradeSignal) *risk.Reservation {
	t.Helper()
	res, err := riskMgr.Check(&signal)
	require.NoError(t, err)
	return res
}

func TestManagerLiveBothLegsFill(t *testing.T) {
	t.Parallel()

	riskMgr := testRisk(t)
	clob := &fakeClob{responses: []submitScript{
		{resp: &types.OrderSubmissionResponse{Success: true, OrderID: "ord-yes", Status: "matched"}},
		{resp: &types.OrderSubmissionResponse{Success: true, OrderID: "ord-no", Status: "matched"}},
	}}
	sink := &captureSink{}

	mgr, err := NewManager(&ManagerConfig{
		Mode:   "live",
		Signer: &fakeSigner{},
		Client: clob,
		Risk:   riskMgr,
		Sinks:  []ResultSink{sink},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	signal := testSignal()
	mgr.Execute(t.Context(), signal, reserve(t, riskMgr, signal))

	result := sink.last()
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Len(t, result.Legs, 2)
	assert.Len(t, result.Fills(), 2)

	// Fills hit the position book and the escrow was committed.
	assert.InDelta(t, 100, riskMgr.Position("tok-yes").Size, 1e-9)
}

func TestManagerLiveFirstLegFailsReleasesReservation(t *testing.T) {
	t.Parallel()

	riskMgr := testRisk(t)
	clob := &fakeClob{responses: []submitScript{
		{err: &types.OrderError{Code: types.ErrNotEnoughBalance, Message: "no balance"}},
	}}
	sink := &captureSink{}

	mgr, err := NewManager(&ManagerConfig{
		Mode:   "live",
		Signer: &fakeSigner{},
		Client: clob,
		Risk:   riskMgr,
		Sinks:  []ResultSink{sink},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	signal := testSignal()
	mgr.Execute(t.Context(), signal, reserve(t, riskMgr, signal))

	result := sink.last()
	require.NotNil(t, result)
	assert.False(t, result.Success)
	require.Error(t, result.Err)
	assert.Len(t, clob.submitted, 1)

	// No fills, no position, escrow released: a full-size check passes again.
	assert.Zero(t, riskMgr.Position("tok-yes").Size)
	res, err := riskMgr.Check(&signal)
	require.NoError(t, err)
	res.Release()
}

func TestManagerLiveSecondLegFailsUnwindsFirst(t *testing.T) {
	t.Parallel()

	riskMgr := testRisk(t)
	clob := &fakeClob{responses: []submitScript{
		{resp: &types.OrderSubmissionResponse{Success: true, OrderID: "ord-yes", Status: "matched"}},
		{err: &types.OrderError{Code: types.ErrFOKNotFilled, Message: "not filled"}},
		// Unwind sell.
		{resp: &types.OrderSubmissionResponse{Success: true, OrderID: "ord-unwind", Status: "matched"}},
	}}
	sink := &captureSink{}
	signer := &fakeSigner{}

	mgr, err := NewManager(&ManagerConfig{
		Mode:   "live",
		Signer: signer,
		Client: clob,
		Risk:   riskMgr,
		Sinks:  []ResultSink{sink},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	signal := testSignal()
	mgr.Execute(t.Context(), signal, reserve(t, riskMgr, signal))

	result := sink.last()
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, types.ErrClassPartial, types.Classify(result.Err))

	// The unwind sold the filled leg back, leaving the book flat.
	assert.InDelta(t, 0, riskMgr.Position("tok-yes").Size, 1e-9)
	assert.False(t, riskMgr.Stopped())

	// Last submitted order is the unwind sell for the filled token.
	require.Len(t, clob.submitted, 3)
	assert.Equal(t, "SELL", clob.submitted[2].Side)
	assert.Equal(t, "tok-yes", clob.submitted[2].TokenID)
}

func TestManagerLiveUnwindFailureTriggersEmergencyStop(t *testing.T) {
	t.Parallel()

	riskMgr := testRisk(t)
	clob := &fakeClob{responses: []submitScript{
		{resp: &types.OrderSubmissionResponse{Success: true, OrderID: "ord-yes", Status: "matched"}},
		{err: &types.OrderError{Code: types.ErrFOKNotFilled, Message: "not filled"}},
		{err: &types.OrderError{Code: "REQUEST_FAILED", Message: "connection refused"}},
	}}
	sink := &captureSink{}

	mgr, err := NewManager(&ManagerConfig{
		Mode:   "live",
		Signer: &fakeSigner{},
		Client: clob,
		Risk:   riskMgr,
		Sinks:  []ResultSink{sink},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	riskMgr.SetCanceller(mgr)

	signal := testSignal()
	mgr.Execute(t.Context(), signal, reserve(t, riskMgr, signal))

	result := sink.last()
	require.NotNil(t, result)
	assert.Equal(t, types.ErrClassFatal, types.Classify(result.Err))
	assert.True(t, riskMgr.Stopped())

	// The filled leg stays on the book since it could not be shed.
	assert.InDelta(t, 100, riskMgr.Position("tok-yes").Size, 1e-9)
}

func TestManagerLiveTimeoutNeverAssumedFilled(t *testing.T) {
	t.Parallel()

	riskMgr := testRisk(t)
	clob := &fakeClob{responses: []submitScript{
		{err: &types.OrderError{Code: "ORDER_TIMEOUT", Message: "no response within 500ms"}},
	}}
	sink := &captureSink{}

	mgr, err := NewManager(&ManagerConfig{
		Mode:   "live",
		Signer: &fakeSigner{},
		Client: clob,
		Risk:   riskMgr,
		Sinks:  []ResultSink{sink},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	signal := testSignal()
	mgr.Execute(t.Context(), signal, reserve(t, riskMgr, signal))

	result := sink.last()
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, types.OrderTimedOut, result.Legs[0].Status)
	assert.Nil(t, result.Legs[0].Fill)

	// A timed-out order gets a defensive cancel-all.
	assert.Equal(t, 1, clob.cancelAlls)
	assert.Zero(t, riskMgr.Position("tok-yes").Size)
}

func TestManagerLiveOpenBreakerRejects(t *testing.T) {
	t.Parallel()

	riskMgr := testRisk(t)
	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		FailureThreshold: 1,
		Window:           time.Minute,
		Cooldown:         time.Minute,
		Logger:           zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	breaker.RecordFailure()

	clob := &fakeClob{}
	sink := &captureSink{}
	mgr, err := NewManager(&ManagerConfig{
		Mode:    "live",
		Signer:  &fakeSigner{},
		Client:  clob,
		Risk:    riskMgr,
		Breaker: breaker,
		Sinks:   []ResultSink{sink},
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	signal := testSignal()
	mgr.Execute(t.Context(), signal, reserve(t, riskMgr, signal))

	result := sink.last()
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Empty(t, clob.submitted)
}

func TestManagerDryRunReleasesReservation(t *testing.T) {
	t.Parallel()

	riskMgr := testRisk(t)
	sink := &captureSink{}
	mgr, err := NewManager(&ManagerConfig{
		Mode:   "dry_run",
		Risk:   riskMgr,
		Sinks:  []ResultSink{sink},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	signal := testSignal()
	mgr.Execute(t.Context(), signal, reserve(t, riskMgr, signal))

	result := sink.last()
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Empty(t, result.Fills())

	assert.Zero(t, riskMgr.Position("tok-yes").Size)
}

func TestManagerPaperModeRecordsFills(t *testing.T) {
	t.Parallel()

	store := marketdata.NewStore()
	now := time.Now()
	store.Update(&types.OrderBook{
		TokenID:   "tok-yes",
		Asks:      []types.Level{{Price: 0.45, Size: 200}},
		Timestamp: now.UnixMilli(),
		Received:  now,
	})
	store.Update(&types.OrderBook{
		TokenID:   "tok-no",
		Asks:      []types.Level{{Price: 0.48, Size: 200}},
		Timestamp: now.UnixMilli(),
		Received:  now,
	})

	riskMgr := testRisk(t)
	sink := &captureSink{}
	mgr, err := NewManager(&ManagerConfig{
		Mode:   "paper",
		Risk:   riskMgr,
		Paper:  NewPaperTrader(store, 0.01, zaptest.NewLogger(t)),
		Sinks:  []ResultSink{sink},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	signal := testSignal()
	mgr.Execute(t.Context(), signal, reserve(t, riskMgr, signal))

	result := sink.last()
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Len(t, result.Fills(), 2)

	assert.InDelta(t, 100, riskMgr.Position("tok-yes").Size, 1e-9)

	stats, ok := mgr.PaperStats()
	require.True(t, ok)
	assert.Equal(t, 1, stats.Trades)
}

func TestManagerCancelAllOnlyLive(t *testing.T) {
	t.Parallel()

	riskMgr := testRisk(t)
	mgr, err := NewManager(&ManagerConfig{
		Mode:   "dry_run",
		Risk:   riskMgr,
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	assert.NoError(t, mgr.CancelAll(t.Context()))
}
