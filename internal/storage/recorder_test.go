package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

type captureStorage struct {
	mu     sync.Mutex
	stored []*types.ExecutionResult
	closed bool
}

func (c *captureStorage) StoreExecution(_ context.Context, result *types.ExecutionResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = append(c.stored, result)
	return nil
}

func (c *captureStorage) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureStorage) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stored)
}

func TestRecorderWritesAsync(t *testing.T) {
	t.Parallel()

	backend := &captureStorage{}
	rec := NewRecorder(backend, 8, zaptest.NewLogger(t))
	require.NoError(t, rec.Start(t.Context()))

	rec.PublishTrade(&types.ExecutionResult{SignalID: "sig-1"})
	rec.PublishTrade(&types.ExecutionResult{SignalID: "sig-2"})

	require.Eventually(t, func() bool {
		return backend.count() == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, rec.Close())
	assert.True(t, backend.closed)
}

func TestRecorderDropsOnFullQueue(t *testing.T) {
	t.Parallel()

	backend := &captureStorage{}
	// Write loop never started: the queue of one fills and the second
	// publish must not block.
	rec := NewRecorder(backend, 1, zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		rec.PublishTrade(&types.ExecutionResult{SignalID: "sig-1"})
		rec.PublishTrade(&types.ExecutionResult{SignalID: "sig-2"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full queue")
	}
}

func TestRecorderDrainsQueueOnClose(t *testing.T) {
	t.Parallel()

	backend := &captureStorage{}
	rec := NewRecorder(backend, 8, zaptest.NewLogger(t))
	require.NoError(t, rec.Start(t.Context()))

	for i := 0; i < 5; i++ {
		rec.PublishTrade(&types.ExecutionResult{SignalID: "sig"})
	}
	require.NoError(t, rec.Close())
	assert.Equal(t, 5, backend.count())
}
