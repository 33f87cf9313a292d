// Package risk implements Risk & Accounting (spec §4.I): daily realized P&L
// tracking, the can_bet gate the Decision Engine consults before sizing, and
// the supplemented loss-reduction ladder and consecutive-loss cooldown from
// original_source/src/bot/strategy.rs.
package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config configures an Accounting tracker. Mirrors the teacher's
// circuitbreaker.Config shape: a flat struct of tunables plus a logger.
type Config struct {
	StartingBankroll       decimal.Decimal
	DailyLossLimitPct      float64
	MaxBetsPerWindow       int
	LossReductionFactor    float64 // 1.0 disables the ladder
	ConsecutiveWinsToReset int
	CooldownEdgeMultiplier float64 // applied to required edge during a losing streak
	CooldownAfterLosses    int     // consecutive losses that trigger the cooldown
	Logger                 *zap.Logger
}

// Accounting tracks realized P&L per rolling UTC day, open position counts,
// and the consecutive win/loss streak the supplemented risk features key off.
// Protected by mu the way the teacher's BalanceCircuitBreaker protects its
// rolling-window state.
type Accounting struct {
	mu sync.RWMutex

	cfg Config

	bankroll         decimal.Decimal
	realizedPnLToday decimal.Decimal
	currentDay       time.Time

	openPositions int
	betsByWindow  map[time.Time]int

	consecutiveLosses int
	consecutiveWins   int
}

// NewAccounting builds an Accounting tracker starting at cfg.StartingBankroll.
func NewAccounting(cfg Config) *Accounting {
	if cfg.LossReductionFactor == 0 {
		cfg.LossReductionFactor = 1.0
	}
	if cfg.ConsecutiveWinsToReset == 0 {
		cfg.ConsecutiveWinsToReset = 3
	}
	if cfg.CooldownEdgeMultiplier == 0 {
		cfg.CooldownEdgeMultiplier = 1.0
	}

	a := &Accounting{
		cfg:          cfg,
		bankroll:     cfg.StartingBankroll,
		betsByWindow: make(map[time.Time]int),
	}
	BankrollGauge.Set(bankrollFloat(a.bankroll))
	return a
}

func bankrollFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// rollDayLocked resets the realized-P&L-today counter when now has crossed
// into a new UTC day. Caller must hold mu.
func (a *Accounting) rollDayLocked(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if a.currentDay.IsZero() {
		a.currentDay = day
		return
	}
	if day.After(a.currentDay) {
		a.currentDay = day
		a.realizedPnLToday = decimal.Zero
		a.betsByWindow = make(map[time.Time]int)
	}
}

// RecordFill applies a realized P&L delta (positive for a win, negative for a
// loss) at settlement time, updates the bankroll, and advances the
// consecutive win/loss streak that feeds the loss-reduction ladder and
// cooldown.
func (a *Accounting) RecordFill(pnl decimal.Decimal, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rollDayLocked(now)

	a.realizedPnLToday = a.realizedPnLToday.Add(pnl)
	a.bankroll = a.bankroll.Add(pnl)

	if pnl.IsNegative() {
		a.consecutiveLosses++
		a.consecutiveWins = 0
	} else if pnl.IsPositive() {
		a.consecutiveWins++
		if a.consecutiveWins >= a.cfg.ConsecutiveWinsToReset {
			a.consecutiveLosses = 0
		}
	}

	RealizedPnLTodayGauge.Set(bankrollFloat(a.realizedPnLToday))
	BankrollGauge.Set(bankrollFloat(a.bankroll))
	ConsecutiveLossesGauge.Set(float64(a.consecutiveLosses))

	a.cfg.Logger.Info("fill-recorded",
		zap.String("pnl", pnl.String()),
		zap.String("realized-pnl-today", a.realizedPnLToday.String()),
		zap.String("bankroll", a.bankroll.String()),
		zap.Int("consecutive-losses", a.consecutiveLosses))
}

// DailyLossExceeded reports whether realized losses today have reached
// daily_loss_limit_pct of the starting bankroll (spec §4.F "size = 0" rule).
func (a *Accounting) DailyLossExceeded(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollDayLocked(now)

	if a.cfg.StartingBankroll.IsZero() {
		return false
	}
	limit := a.cfg.StartingBankroll.Mul(decimal.NewFromFloat(a.cfg.DailyLossLimitPct))
	return a.realizedPnLToday.Neg().GreaterThanOrEqual(limit)
}

// CanBet is the can_bet(size) gate of spec §4.I: false when the daily loss
// budget is exhausted or size is non-positive.
func (a *Accounting) CanBet(size decimal.Decimal, now time.Time) bool {
	if size.IsZero() || size.IsNegative() {
		return false
	}
	return !a.DailyLossExceeded(now)
}

// BetsRemainingInWindow reports whether another bet may be placed in window
// under the per-window cap (spec §4.G "Per-window bet cap").
func (a *Accounting) BetsRemainingInWindow(window time.Time, maxBets int) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.betsByWindow[window] < maxBets
}

// RecordBet increments the bet count for window and the open-position count.
func (a *Accounting) RecordBet(window time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.betsByWindow[window]++
	a.openPositions++
	OpenPositionsGauge.Set(float64(a.openPositions))
}

// RecordPositionClosed decrements the open-position count.
func (a *Accounting) RecordPositionClosed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.openPositions > 0 {
		a.openPositions--
	}
	OpenPositionsGauge.Set(float64(a.openPositions))
}

// LossReductionFactor is the size-haircut to feed into
// sizing.ApplyLossReduction: 1.0 unless currently inside a losing streak.
func (a *Accounting) LossReductionFactor() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.consecutiveLosses == 0 {
		return 1.0
	}
	return a.cfg.LossReductionFactor
}

// CooldownEdgeMultiplier widens the required edge threshold after
// cfg.CooldownAfterLosses consecutive losses (the supplemented
// consecutive-loss cooldown, folded into the Decision Engine's CoolingDown
// state). Returns 1.0 (no widening) outside a cooldown.
func (a *Accounting) CooldownEdgeMultiplier() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.cfg.CooldownAfterLosses > 0 && a.consecutiveLosses >= a.cfg.CooldownAfterLosses {
		return a.cfg.CooldownEdgeMultiplier
	}
	return 1.0
}

// Snapshot is a point-in-time read of accounting state for logging, HTTP
// status endpoints, and bankroll persistence.
type Snapshot struct {
	Bankroll          decimal.Decimal
	RealizedPnLToday  decimal.Decimal
	OpenPositions     int
	ConsecutiveLosses int
	ConsecutiveWins   int
}

// Snapshot returns the current accounting state.
func (a *Accounting) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Snapshot{
		Bankroll:          a.bankroll,
		RealizedPnLToday:  a.realizedPnLToday,
		OpenPositions:     a.openPositions,
		ConsecutiveLosses: a.consecutiveLosses,
		ConsecutiveWins:   a.consecutiveWins,
	}
}
