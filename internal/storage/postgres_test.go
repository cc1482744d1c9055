package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

func mockStorage(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &PostgresStorage{db: db, logger: zaptest.NewLogger(t)}, mock
}

func sampleResult() *types.ExecutionResult {
	now := time.Now()
	return &types.ExecutionResult{
		SignalID:   "sig-1",
		Strategy:   "sum_to_100",
		Market:     "0xm",
		Mode:       "live",
		Success:    true,
		ExecutedAt: now,
		Legs: []types.LegResult{
			{
				Intent:  types.OrderIntent{TokenID: "tok-yes", Outcome: "YES", Side: types.SideBuy, Price: 0.45, Size: 100},
				Status:  types.OrderFilled,
				OrderID: "ord-1",
				Fill: &types.Fill{
					TokenID: "tok-yes", Outcome: "YES", Side: types.SideBuy,
					Price: 0.455, Size: 100, Fee: 0.455, OrderID: "ord-1", Timestamp: now,
				},
			},
			{
				Intent:  types.OrderIntent{TokenID: "tok-no", Outcome: "NO", Side: types.SideBuy, Price: 0.48, Size: 100},
				Status:  types.OrderFilled,
				OrderID: "ord-2",
				Fill: &types.Fill{
					TokenID: "tok-no", Outcome: "NO", Side: types.SideBuy,
					Price: 0.48, Size: 100, Fee: 0.48, OrderID: "ord-2", Timestamp: now,
				},
			},
		},
	}
}

func TestStoreExecutionWritesRowsInOneTx(t *testing.T) {
	t.Parallel()

	store, mock := mockStorage(t)
	result := sampleResult()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO executions").
		WithArgs(result.SignalID, result.Strategy, result.Market, result.Mode,
			result.Success, nil, result.ExecutedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO fills").
		WithArgs(result.SignalID, "ord-1", "tok-yes", "YES", "BUY",
			0.455, 100.0, 0.455, result.Legs[0].Fill.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO fills").
		WithArgs(result.SignalID, "ord-2", "tok-no", "NO", "BUY",
			0.48, 100.0, 0.48, result.Legs[1].Fill.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.StoreExecution(t.Context(), result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreExecutionRollsBackOnFillError(t *testing.T) {
	t.Parallel()

	store, mock := mockStorage(t)
	result := sampleResult()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO executions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO fills").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.StoreExecution(t.Context(), result)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreExecutionRecordsError(t *testing.T) {
	t.Parallel()

	store, mock := mockStorage(t)
	result := sampleResult()
	result.Success = false
	result.Legs = nil
	result.Err = &types.RiskRejection{Rule: "notional", Detail: "over limit"}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO executions").
		WithArgs(result.SignalID, result.Strategy, result.Market, result.Mode,
			false, result.Err.Error(), result.ExecutedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.StoreExecution(t.Context(), result))
	assert.NoError(t, mock.ExpectationsWereMet())
}
