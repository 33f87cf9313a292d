package execution

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/pkg/boterrors"
)

// BackoffConfig is the exponential-backoff retry policy of spec §4.H:
// "network or 5xx errors retry with exponential backoff (base 200ms, cap 2s)
// up to max_retries (default 3)".
type BackoffConfig struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	MaxRetries int
}

// DefaultBackoff matches spec.md's stated defaults.
var DefaultBackoff = BackoffConfig{
	Base:       200 * time.Millisecond,
	Max:        2 * time.Second,
	Multiplier: 2.0,
	MaxRetries: 3,
}

// withRetry runs fn, retrying on boterrors.Transient errors with exponential
// backoff up to cfg.MaxRetries attempts. boterrors.Permanent errors and any
// other error abort immediately (spec §4.H "FAK cancellations do not retry
// within the same tick"; fatal conditions never retry, per spec §4.H/§7).
func withRetry(ctx context.Context, cfg BackoffConfig, logger *zap.Logger, side string, fn func() error) error {
	delay := cfg.Base

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !boterrors.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxRetries {
			break
		}

		ExecutionRetriesTotal.WithLabelValues(side).Inc()
		logger.Warn("execution-retry",
			zap.String("side", side),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.Max {
			delay = cfg.Max
		}
	}
	return lastErr
}
