// Package collaborators implements the two abstract external collaborators of
// spec §6: the spot-price source and the prediction-market exchange. Neither
// interface commits to a concrete wire protocol — implementers plug in
// whatever reliable feed or REST/WS exchange client is available.
package collaborators

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/pkg/boterrors"
	"github.com/mselser95/btc15m-maker/pkg/cache"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

// SpotPriceSource is the abstract spot-price collaborator of spec §6:
// get_latest_btc_usd() -> { price, timestamp } with freshness <= 1s.
type SpotPriceSource interface {
	GetLatestBTCUSD(ctx context.Context) (types.SpotQuote, error)
}

const spotCacheKey = "spot:btcusd"

// CachedSpotSource wraps a SpotPriceSource with a short-TTL cache so the
// Decision Engine's tick (spec §4.G step 2, "cached <= 500ms") doesn't pay a
// network round-trip every 500ms tick.
type CachedSpotSource struct {
	upstream SpotPriceSource
	cache    cache.Cache
	ttl      time.Duration
	logger   *zap.Logger
}

// NewCachedSpotSource wraps upstream with a cache.Cache using the given TTL
// (spec default 500ms).
func NewCachedSpotSource(upstream SpotPriceSource, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedSpotSource {
	return &CachedSpotSource{upstream: upstream, cache: c, ttl: ttl, logger: logger}
}

// GetLatestBTCUSD returns the cached quote if still fresh, otherwise fetches
// from upstream and refreshes the cache.
func (s *CachedSpotSource) GetLatestBTCUSD(ctx context.Context) (types.SpotQuote, error) {
	if v, ok := s.cache.Get(spotCacheKey); ok {
		if q, ok := v.(types.SpotQuote); ok {
			return q, nil
		}
	}

	q, err := s.upstream.GetLatestBTCUSD(ctx)
	if err != nil {
		return types.SpotQuote{}, fmt.Errorf("fetch spot quote: %w", err)
	}

	s.cache.Set(spotCacheKey, q, s.ttl)
	return q, nil
}

// MaxSpotAge is the freshness bound spec §6 requires of the spot collaborator.
const MaxSpotAge = 1 * time.Second

// StaleSpotError is returned when a fetched quote already violates the
// freshness bound — a data-staleness condition per spec §7, not a hard error.
type StaleSpotError struct {
	Age time.Duration
}

func (e *StaleSpotError) Error() string {
	return fmt.Sprintf("spot quote is %s old, exceeds %s freshness bound", e.Age, MaxSpotAge)
}

// Unwrap lets errors.Is(err, boterrors.DataStaleness) match a StaleSpotError.
func (e *StaleSpotError) Unwrap() error { return boterrors.DataStaleness }

// CheckFreshness returns a *StaleSpotError if q is older than MaxSpotAge as of
// now, nil otherwise.
func CheckFreshness(q types.SpotQuote, now time.Time) error {
	if age := q.Age(now); age > MaxSpotAge {
		return &StaleSpotError{Age: age}
	}
	return nil
}
