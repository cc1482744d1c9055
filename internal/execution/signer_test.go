package execution

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

// Well-known throwaway key, never funded.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func newTestSignerPool(t *testing.T, queueDepth int) *SignerPool {
	t.Helper()

	pool, err := NewSignerPool(&SignerConfig{
		PrivateKey: testPrivateKey,
		Workers:    2,
		QueueDepth: queueDepth,
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return pool
}

func TestSignerPoolSignsBuyOrder(t *testing.T) {
	t.Parallel()

	pool := newTestSignerPool(t, 8)
	require.NoError(t, pool.Start(t.Context()))
	defer pool.Close()

	order, err := pool.Sign(t.Context(), types.OrderIntent{
		TokenID: "123456789",
		Outcome: "YES",
		Side:    types.SideBuy,
		Price:   0.45,
		Size:    100,
	})
	require.NoError(t, err)

	assert.Equal(t, "BUY", order.Side)
	assert.Equal(t, "123456789", order.TokenID)
	// Buys spend USDC (maker) for shares (taker), both 6-decimal raw.
	assert.Equal(t, "45000000", order.MakerAmount)
	assert.Equal(t, "100000000", order.TakerAmount)
	// No funder configured: maker and signer are both the EOA.
	assert.Equal(t, pool.Address(), order.Maker)
	assert.Equal(t, pool.Address(), order.Signer)
	assert.NotEmpty(t, order.Signature)
}

func TestSignerPoolSignsSellOrder(t *testing.T) {
	t.Parallel()

	pool := newTestSignerPool(t, 8)
	require.NoError(t, pool.Start(t.Context()))
	defer pool.Close()

	order, err := pool.Sign(t.Context(), types.OrderIntent{
		TokenID: "123456789",
		Outcome: "YES",
		Side:    types.SideSell,
		Price:   0.40,
		Size:    100,
	})
	require.NoError(t, err)

	assert.Equal(t, "SELL", order.Side)
	// Sells give up shares (maker) for USDC (taker).
	assert.Equal(t, "100000000", order.MakerAmount)
	assert.Equal(t, "40000000", order.TakerAmount)
}

func TestSignerPoolSaturatedQueue(t *testing.T) {
	t.Parallel()

	pool := newTestSignerPool(t, 1)
	// No workers started; one parked task fills the queue.
	pool.tasks <- signTask{result: make(chan signResult, 1)}

	_, err := pool.Sign(t.Context(), types.OrderIntent{TokenID: "1", Side: types.SideBuy, Price: 0.5, Size: 10})
	var oe *types.OrderError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "SIGNER_SATURATED", oe.Code)
}

func TestSignerPoolClosedIsFatal(t *testing.T) {
	t.Parallel()

	pool := newTestSignerPool(t, 8)
	require.NoError(t, pool.Start(t.Context()))
	require.NoError(t, pool.Close())

	_, err := pool.Sign(t.Context(), types.OrderIntent{TokenID: "1", Side: types.SideBuy, Price: 0.5, Size: 10})
	require.Error(t, err)
	assert.Equal(t, types.ErrClassFatal, types.Classify(err))
}

func TestSignerPoolCloseFailsPendingSign(t *testing.T) {
	t.Parallel()

	// No workers started, so the enqueued sign parks until Close.
	pool := newTestSignerPool(t, 8)

	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Sign(t.Context(), types.OrderIntent{TokenID: "1", Side: types.SideBuy, Price: 0.5, Size: 10})
		errCh <- err
	}()

	// Give the goroutine a moment to enqueue before shutting down.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, pool.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Equal(t, types.ErrClassFatal, types.Classify(err))
	case <-time.After(2 * time.Second):
		t.Fatal("Sign did not return after Close")
	}
}

func TestSignerPoolConcurrentSignAndClose(t *testing.T) {
	t.Parallel()

	pool := newTestSignerPool(t, 4)
	require.NoError(t, pool.Start(t.Context()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				// Errors are expected once the pool closes; the point is
				// that Sign never panics racing Close.
				_, _ = pool.Sign(t.Context(), types.OrderIntent{TokenID: "1", Side: types.SideBuy, Price: 0.5, Size: 10})
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, pool.Close())
	wg.Wait()
}

func TestSignerPoolRejectsBadKey(t *testing.T) {
	t.Parallel()

	_, err := NewSignerPool(&SignerConfig{
		PrivateKey: "not-a-key",
		Workers:    1,
		Logger:     zaptest.NewLogger(t),
	})
	require.Error(t, err)
}
