package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/pkg/types"
)

// ConsoleStorage implements Store by logging position summaries through zap,
// for local/dry-run use without a database.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{logger: logger}
}

// SavePosition logs the position's current summary and legs at info level.
func (c *ConsoleStorage) SavePosition(ctx context.Context, pos *types.Position) error {
	fields := []zap.Field{
		zap.String("position-id", pos.PositionID),
		zap.Time("window-start", pos.WindowStart),
		zap.String("direction", string(pos.Direction)),
		zap.String("status", string(pos.Status)),
		zap.String("realized-pnl", pos.RealizedPnL.String()),
	}
	if pos.BuyLeg != nil {
		fields = append(fields,
			zap.String("buy-status", string(pos.BuyLeg.Status)),
			zap.String("buy-filled-shares", pos.BuyLeg.FilledShares.String()),
			zap.String("buy-filled-price", pos.BuyLeg.FilledPrice.String()))
	}
	if pos.SellLeg != nil {
		fields = append(fields,
			zap.String("sell-status", string(pos.SellLeg.Status)),
			zap.String("sell-filled-shares", pos.SellLeg.FilledShares.String()),
			zap.String("sell-filled-price", pos.SellLeg.FilledPrice.String()))
	}
	c.logger.Info("position-summary", fields...)
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
