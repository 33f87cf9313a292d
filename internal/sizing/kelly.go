// Package sizing implements the Kelly Sizer (spec §4.F): turns an edge
// estimate into a bet size, fractionally scaled by confidence and capped by
// bankroll and absolute limits.
package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/mselser95/btc15m-maker/pkg/types"
)

// ConfidenceFractions are the k_confidence Kelly-fraction multipliers of spec
// §4.F. Unreliable has no entry: the Edge Calculator never emits a
// should_bet recommendation for it, so Sizer never sees one.
type ConfidenceFractions struct {
	Weak     float64
	Moderate float64
	Strong   float64
}

// DefaultConfidenceFractions matches spec.md's stated defaults.
var DefaultConfidenceFractions = ConfidenceFractions{
	Weak:     0.10,
	Moderate: 0.25,
	Strong:   0.50,
}

func (f ConfidenceFractions) kFor(c types.Confidence) float64 {
	switch c {
	case types.Strong:
		return f.Strong
	case types.Moderate:
		return f.Moderate
	case types.Weak:
		return f.Weak
	default:
		return 0
	}
}

// Limits are the hard caps and floor from spec §4.F / SPEC_FULL config table.
type Limits struct {
	FractionCap      float64 // f_cap, fraction of bankroll (default 0.10)
	MaxBetUSDC       decimal.Decimal
	MinBetUSDC       decimal.Decimal
	DailyLossLimitPct float64
}

// DefaultLimits matches spec.md's stated defaults.
var DefaultLimits = Limits{
	FractionCap:       0.10,
	MaxBetUSDC:        decimal.NewFromInt(100),
	MinBetUSDC:        decimal.NewFromInt(1),
	DailyLossLimitPct: 0.20,
}

// Sizer computes bet sizes from Kelly criterion, confidence, and risk state.
type Sizer struct {
	Fractions ConfidenceFractions
	Limits    Limits
}

// NewSizer builds a Sizer with the given fraction table and limits.
func NewSizer(fractions ConfidenceFractions, limits Limits) *Sizer {
	return &Sizer{Fractions: fractions, Limits: limits}
}

// Result is the outcome of a sizing decision, carrying enough of the
// intermediate math for logging and tests.
type Result struct {
	KellyFraction float64 // f*, unclamped
	UsedFraction  float64 // f_used, after confidence scaling and caps
	USDC          decimal.Decimal
}

// Size computes f* = (p*b - (1-p))/b with b = (1-price)/price, scales it by
// k_confidence, clamps to [0, f_cap], applies the absolute max/min bet
// bounds, and zeroes out entirely if dailyLossExceeded (spec §4.F last rule).
func (s *Sizer) Size(p float64, marketPrice float64, confidence types.Confidence, bankroll decimal.Decimal, dailyLossExceeded bool) Result {
	if dailyLossExceeded || marketPrice <= 0 || marketPrice >= 1 {
		return Result{}
	}

	b := (1 - marketPrice) / marketPrice
	fStar := (p*b - (1 - p)) / b

	k := s.Fractions.kFor(confidence)
	fUsed := clamp(fStar*k, 0, s.Limits.FractionCap)

	usdc := bankroll.Mul(decimal.NewFromFloat(fUsed))
	if usdc.GreaterThan(s.Limits.MaxBetUSDC) {
		usdc = s.Limits.MaxBetUSDC
	}
	if usdc.LessThan(s.Limits.MinBetUSDC) {
		usdc = decimal.Zero
	}

	return Result{KellyFraction: fStar, UsedFraction: fUsed, USDC: usdc}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// ApplyLossReduction shrinks a used fraction by factor after a losing bet,
// per the supplemented loss-reduction ladder (original_source/src/bot/
// strategy.rs RiskConfig.loss_reduction_factor). factor=1.0 disables the
// ladder; callers reset to 1.0 after consecutiveWinsToReset wins.
func ApplyLossReduction(fUsed float64, factor float64) float64 {
	return fUsed * factor
}
