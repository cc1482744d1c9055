package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

// ConsoleStorage logs executions instead of persisting them. The default
// backend when no database is configured.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	return &ConsoleStorage{logger: logger}
}

func (c *ConsoleStorage) StoreExecution(_ context.Context, result *types.ExecutionResult) error {
	fields := []zap.Field{
		zap.String("signal-id", result.SignalID),
		zap.String("strategy", result.Strategy),
		zap.String("market", result.Market),
		zap.String("mode", result.Mode),
		zap.Bool("success", result.Success),
		zap.Int("fills", len(result.Fills())),
	}
	if result.Err != nil {
		fields = append(fields, zap.Error(result.Err))
	}
	c.logger.Info("execution-record", fields...)
	return nil
}

func (c *ConsoleStorage) Close() error { return nil }
