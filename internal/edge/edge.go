// Package edge implements the Edge Calculator (spec §4.E): given a matrix
// cell and a market price, it derives a conservative probability estimate and
// decides whether the edge clears the confidence-scaled threshold to bet.
package edge

import (
	"math"

	"github.com/mselser95/btc15m-maker/internal/matrix"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

// Thresholds holds the minimum edge required to bet, keyed by confidence
// (spec §4.E step 4; defaults from spec §4.E and SPEC_FULL config table).
type Thresholds struct {
	Strong   float64
	Moderate float64
	Weak     float64
}

// DefaultThresholds matches spec.md's stated defaults.
var DefaultThresholds = Thresholds{
	Strong:   0.05,
	Moderate: 0.07,
	Weak:     0.15,
}

// minFor returns the minimum required edge for a confidence level, or
// (0, false) for Unreliable, which never bets regardless of edge.
func (t Thresholds) minFor(c types.Confidence) (float64, bool) {
	switch c {
	case types.Strong:
		return t.Strong, true
	case types.Moderate:
		return t.Moderate, true
	case types.Weak:
		return t.Weak, true
	default:
		return 0, false
	}
}

// Calculator evaluates edge for a direction at a matrix coordinate.
type Calculator struct {
	Thresholds Thresholds
}

// RequiredEdge exposes minFor to callers outside the package — the Decision
// Engine's cooldown widening (spec §4.G CoolingDown) needs the base threshold
// to scale by the risk cooldown multiplier.
func (calc *Calculator) RequiredEdge(c types.Confidence) (float64, bool) {
	return calc.Thresholds.minFor(c)
}

// NewCalculator builds a Calculator with the given thresholds.
func NewCalculator(t Thresholds) *Calculator {
	return &Calculator{Thresholds: t}
}

// directionalProbability applies the Wilson-lower-bound conservatism rule of
// spec §4.E step 1: use wilson_lower(p_up) for UP, 1 - wilson_upper(p_up) for
// DOWN.
func directionalProbability(c matrix.Cell, direction types.Outcome) float64 {
	if direction == types.Up {
		return c.WilsonLower
	}
	return 1 - c.WilsonUpper
}

// Evaluate computes the Recommendation for one direction at one cell against
// a market price in (0, 1]. marketPrice <= 0 yields edge = +Inf, per spec.
func (calc *Calculator) Evaluate(cell matrix.Cell, direction types.Outcome, marketPrice float64) types.Recommendation {
	p := directionalProbability(cell, direction)

	var edge float64
	if marketPrice > 0 {
		edge = (p - marketPrice) / marketPrice
	} else {
		edge = math.Inf(1)
	}

	ev := p*(1-marketPrice)/maxPositive(marketPrice) - (1 - p)

	rec := types.Recommendation{
		Direction:         direction,
		Edge:              edge,
		Confidence:        cell.Confidence,
		OurProbability:    p,
		MarketProbability: marketPrice,
		EVPerUnit:         ev,
	}

	minEdge, eligible := calc.Thresholds.minFor(cell.Confidence)
	rec.ShouldBet = eligible && edge >= minEdge

	return rec
}

func maxPositive(x float64) float64 {
	if x <= 0 {
		return math.SmallestNonzeroFloat64
	}
	return x
}

// Best picks the higher-edge recommendation between two candidates that both
// cleared their threshold, breaking further ties toward the direction aligned
// with momentumSign (spec §4.E tie-break, folded into §4.G's momentum filter).
// momentumSign is the sign of (spot - window_open): positive favors UP,
// negative favors DOWN, zero breaks no further tie.
func Best(up, down types.Recommendation, momentumSign int) types.Recommendation {
	if !up.ShouldBet {
		return down
	}
	if !down.ShouldBet {
		return up
	}
	if up.Edge > down.Edge {
		return up
	}
	if down.Edge > up.Edge {
		return down
	}
	if momentumSign > 0 {
		return up
	}
	if momentumSign < 0 {
		return down
	}
	return up
}
