package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

// Storage persists execution results.
type Storage interface {
	// StoreExecution persists one execution result with its fills.
	StoreExecution(ctx context.Context, result *types.ExecutionResult) error

	// Close closes the storage backend.
	Close() error
}

// Recorder adapts a Storage into a fire-and-forget sink: the execution path
// enqueues and moves on, a single goroutine writes. A full queue drops the
// write rather than stalling trading.
type Recorder struct {
	storage Storage
	queue   chan *types.ExecutionResult
	logger  *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewRecorder creates a recorder over the given backend.
func NewRecorder(storage Storage, queueSize int, logger *zap.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = 128
	}
	return &Recorder{
		storage: storage,
		queue:   make(chan *types.ExecutionResult, queueSize),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches the write loop.
func (r *Recorder) Start(ctx context.Context) error {
	r.wg.Add(1)
	go r.loop(ctx)
	return nil
}

func (r *Recorder) loop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			// Drain what is already queued before shutting down.
			for {
				select {
				case result := <-r.queue:
					r.write(ctx, result)
				default:
					return
				}
			}
		case result := <-r.queue:
			r.write(ctx, result)
		}
	}
}

func (r *Recorder) write(ctx context.Context, result *types.ExecutionResult) {
	if err := r.storage.StoreExecution(ctx, result); err != nil {
		WriteErrorsTotal.Inc()
		r.logger.Warn("execution-store-failed",
			zap.String("signal-id", result.SignalID),
			zap.Error(err))
		return
	}
	WritesTotal.Inc()
}

// PublishTrade enqueues a result for persistence without blocking.
func (r *Recorder) PublishTrade(result *types.ExecutionResult) {
	select {
	case r.queue <- result:
	default:
		WritesDroppedTotal.Inc()
		r.logger.Warn("execution-store-dropped",
			zap.String("signal-id", result.SignalID))
	}
}

// Close drains the queue and closes the backend.
func (r *Recorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		err = r.storage.Close()
	})
	return err
}
