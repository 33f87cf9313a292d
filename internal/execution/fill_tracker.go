package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/internal/collaborators"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

// FillTrackerConfig configures fill verification polling, adapted from the
// teacher's FillTrackerConfig (same field shape, single-order instead of a
// batch since one position submits one order per leg).
type FillTrackerConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffMult    float64
	FillTimeout    time.Duration
}

// DefaultFillTrackerConfig is a reasonable default for a FAK order that
// should resolve almost immediately.
var DefaultFillTrackerConfig = FillTrackerConfig{
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     1 * time.Second,
	BackoffMult:    2.0,
	FillTimeout:    5 * time.Second,
}

// fillTolerance absorbs decimal rounding noise when comparing filled vs
// requested size, mirroring the teacher's 0.001 float tolerance.
var fillTolerance = decimal.NewFromFloat(0.001)

// VerifyFill polls market.GetOrder(orderID) with exponential backoff until
// the order is fully filled, the requested timeout elapses, or ctx is
// cancelled. Returns the last observed OrderAck either way; callers decide
// PARTIAL vs FAILED from the returned ack's FilledSize.
func VerifyFill(ctx context.Context, market collaborators.PredictionMarket, logger *zap.Logger, orderID string, requestedSize decimal.Decimal, cfg FillTrackerConfig) (types.OrderAck, error) {
	deadline := time.Now().Add(cfg.FillTimeout)
	backoff := cfg.InitialBackoff

	var last types.OrderAck
	attempt := 1

	for {
		ack, err := market.GetOrder(ctx, orderID)
		if err != nil {
			logger.Warn("order-query-failed-retrying",
				zap.String("order-id", orderID), zap.Int("attempt", attempt), zap.Error(err))
		} else {
			last = ack
			if ack.FilledSize.Sub(requestedSize).Abs().LessThanOrEqual(fillTolerance) || ack.FilledSize.GreaterThanOrEqual(requestedSize) {
				logger.Info("order-fully-filled",
					zap.String("order-id", orderID),
					zap.String("filled-size", ack.FilledSize.String()))
				return last, nil
			}
		}

		if time.Now().After(deadline) {
			logger.Warn("fill-verification-timeout",
				zap.String("order-id", orderID), zap.Int("attempts", attempt))
			return last, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(backoff):
		}

		attempt++
		backoff = time.Duration(float64(backoff) * cfg.BackoffMult)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
}
