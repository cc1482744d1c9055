package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

// PostgresStorage persists executions and their fills to PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds connection parameters.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage opens and pings the database.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{db: db, logger: cfg.Logger}, nil
}

// StoreExecution writes the execution row and one row per fill in a single
// transaction.
func (p *PostgresStorage) StoreExecution(ctx context.Context, result *types.ExecutionResult) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var errMsg sql.NullString
	if result.Err != nil {
		errMsg = sql.NullString{String: result.Err.Error(), Valid: true}
		errMsg.String = truncateString(errMsg.String, 1024)
	}

	const execQuery = `
		INSERT INTO executions (
			signal_id, strategy, market_id, mode, success, error, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.ExecContext(ctx, execQuery,
		result.SignalID,
		result.Strategy,
		result.Market,
		result.Mode,
		result.Success,
		errMsg,
		result.ExecutedAt,
	); err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}

	const fillQuery = `
		INSERT INTO fills (
			signal_id, order_id, token_id, outcome, side, price, size, fee, filled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, fill := range result.Fills() {
		if _, err := tx.ExecContext(ctx, fillQuery,
			result.SignalID,
			fill.OrderID,
			fill.TokenID,
			fill.Outcome,
			string(fill.Side),
			fill.Price,
			fill.Size,
			fill.Fee,
			fill.Timestamp,
		); err != nil {
			return fmt.Errorf("insert fill: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	p.logger.Debug("execution-stored",
		zap.String("signal-id", result.SignalID),
		zap.Int("fills", len(result.Fills())))
	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}

func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
