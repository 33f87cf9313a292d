package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/pkg/types"
)

// PostgresStorage implements Store using PostgreSQL. Schema (one row per
// Position summary, upserted by position_id, plus one row per leg Execution,
// inserted once per client_id):
//
//	positions(position_id pk, window_start, direction, status, realized_pnl, created_at, updated_at)
//	executions(id pk, position_id fk, side, order_type, requested_price, requested_amount,
//	           filled_price, filled_amount, filled_shares, status, order_id, client_id,
//	           error_message, submitted_at, resolved_at, retry_count,
//	           context_btc_price, context_delta, context_edge,
//	           context_our_probability, context_market_probability)
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
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

	return newPostgresStorageWithDB(db, cfg.Logger), nil
}

// newPostgresStorageWithDB wraps an already-opened *sql.DB, letting tests
// inject a sqlmock-backed connection without dialing a real database.
func newPostgresStorageWithDB(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, logger: logger}
}

// SavePosition upserts the position summary row and inserts one row per leg
// Execution, scoped to a single transaction so a crash mid-write never leaves
// a Position row without its legs or vice versa.
func (p *PostgresStorage) SavePosition(ctx context.Context, pos *types.Position) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO positions (position_id, window_start, direction, status, realized_pnl, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (position_id) DO UPDATE SET
			status = EXCLUDED.status,
			realized_pnl = EXCLUDED.realized_pnl,
			updated_at = EXCLUDED.updated_at
	`, pos.PositionID, pos.WindowStart, string(pos.Direction), string(pos.Status),
		pos.RealizedPnL.String(), pos.CreatedAt, pos.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}

	if pos.BuyLeg != nil {
		if err := insertExecution(ctx, tx, pos.PositionID, pos.BuyLeg); err != nil {
			return err
		}
	}
	if pos.SellLeg != nil {
		if err := insertExecution(ctx, tx, pos.PositionID, pos.SellLeg); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit position: %w", err)
	}

	p.logger.Debug("position-saved",
		zap.String("position-id", pos.PositionID),
		zap.String("status", string(pos.Status)))
	return nil
}

func insertExecution(ctx context.Context, tx *sql.Tx, positionID string, e *types.Execution) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO executions (
			position_id, side, order_type, requested_price, requested_amount,
			filled_price, filled_amount, filled_shares, status, order_id, client_id,
			error_message, submitted_at, resolved_at, retry_count,
			context_btc_price, context_delta, context_edge,
			context_our_probability, context_market_probability
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		ON CONFLICT (client_id) DO NOTHING
	`,
		positionID, string(e.Side), string(e.OrderType),
		e.RequestedPrice.String(), e.RequestedAmount.String(),
		e.FilledPrice.String(), e.FilledAmount.String(), e.FilledShares.String(),
		string(e.Status), e.OrderID, e.ClientID, e.ErrorMessage,
		e.SubmittedAt, e.ResolvedAt, e.RetryCount,
		e.Context.BTCPrice.String(), e.Context.Delta.String(), e.Context.Edge,
		e.Context.OurProbability, e.Context.MarketProbability,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
