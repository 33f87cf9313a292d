package edge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mselser95/btc15m-maker/internal/matrix"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

func strongCell(wilsonLower, wilsonUpper float64) matrix.Cell {
	return matrix.Cell{
		CountUp:     650,
		CountDown:   350,
		PUp:         0.65,
		WilsonLower: wilsonLower,
		WilsonUpper: wilsonUpper,
		Confidence:  types.Strong,
	}
}

func TestEvaluateUpEdge(t *testing.T) {
	calc := NewCalculator(DefaultThresholds)
	cell := strongCell(0.60, 0.70)

	rec := calc.Evaluate(cell, types.Up, 0.50)
	assert.InDelta(t, (0.60-0.50)/0.50, rec.Edge, 1e-9)
	assert.True(t, rec.ShouldBet)
}

func TestEvaluateDownUsesOneMinusWilsonUpper(t *testing.T) {
	calc := NewCalculator(DefaultThresholds)
	cell := strongCell(0.60, 0.70)

	rec := calc.Evaluate(cell, types.Down, 0.25)
	wantP := 1 - 0.70
	assert.InDelta(t, wantP, rec.OurProbability, 1e-9)
	assert.InDelta(t, (wantP-0.25)/0.25, rec.Edge, 1e-9)
}

func TestEvaluateUnreliableNeverBets(t *testing.T) {
	calc := NewCalculator(DefaultThresholds)
	cell := matrix.Cell{WilsonLower: 0.9, WilsonUpper: 0.95, Confidence: types.Unreliable}

	rec := calc.Evaluate(cell, types.Up, 0.1)
	assert.False(t, rec.ShouldBet)
}

func TestEvaluateZeroMarketPriceIsInfiniteEdge(t *testing.T) {
	calc := NewCalculator(DefaultThresholds)
	cell := strongCell(0.6, 0.7)

	rec := calc.Evaluate(cell, types.Up, 0)
	assert.True(t, math.IsInf(rec.Edge, 1))
}

func TestEdgeMonotonicallyDecreasingInMarketPrice(t *testing.T) {
	calc := NewCalculator(DefaultThresholds)
	cell := strongCell(0.6, 0.7)

	prev := math.Inf(1)
	for _, price := range []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0} {
		rec := calc.Evaluate(cell, types.Up, price)
		assert.Less(t, rec.Edge, prev)
		prev = rec.Edge
	}
}

func TestBestPicksHigherEdge(t *testing.T) {
	up := types.Recommendation{ShouldBet: true, Direction: types.Up, Edge: 0.10}
	down := types.Recommendation{ShouldBet: true, Direction: types.Down, Edge: 0.20}
	assert.Equal(t, types.Down, Best(up, down, 0).Direction)
}

func TestBestTieBreaksTowardMomentum(t *testing.T) {
	up := types.Recommendation{ShouldBet: true, Direction: types.Up, Edge: 0.10}
	down := types.Recommendation{ShouldBet: true, Direction: types.Down, Edge: 0.10}
	assert.Equal(t, types.Up, Best(up, down, 1).Direction)
	assert.Equal(t, types.Down, Best(up, down, -1).Direction)
}

func TestBestSkipsIneligibleSide(t *testing.T) {
	up := types.Recommendation{ShouldBet: false, Direction: types.Up, Edge: 0.50}
	down := types.Recommendation{ShouldBet: true, Direction: types.Down, Edge: 0.05}
	assert.Equal(t, types.Down, Best(up, down, 0).Direction)
}
