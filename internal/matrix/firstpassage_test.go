package matrix

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/btc15m-maker/pkg/types"
)

func TestFirstPassageCellAddObservation(t *testing.T) {
	var c FirstPassageCell
	c.AddObservation(true)
	c.AddObservation(true)
	c.AddObservation(false)
	assert.Equal(t, int64(2), c.CountContinue)
	assert.Equal(t, int64(1), c.CountReverse)
	assert.Equal(t, int64(3), c.N())
}

func TestFirstPassageCellRecompute(t *testing.T) {
	c := FirstPassageCell{CountContinue: 9, CountReverse: 1}
	c.Recompute(1, 1)

	assert.Greater(t, c.PContinue, 0.5)
	assert.Equal(t, types.Weak, c.Confidence)
}

func TestContinuesSameDirection(t *testing.T) {
	assert.True(t, continuesSameDirection(decimal.NewFromFloat(2), decimal.NewFromFloat(5)))
	assert.True(t, continuesSameDirection(decimal.NewFromFloat(2), decimal.NewFromFloat(2)))
	assert.False(t, continuesSameDirection(decimal.NewFromFloat(2), decimal.NewFromFloat(1)))
	assert.False(t, continuesSameDirection(decimal.NewFromFloat(2), decimal.NewFromFloat(-1)))
	assert.True(t, continuesSameDirection(decimal.NewFromFloat(-2), decimal.NewFromFloat(-5)))
}

// TestBuildPopulatesFirstPassageForSteadyContinuation builds a window whose
// price moves monotonically in one direction: every partial delta observed
// along the way is smaller in magnitude than the window's final delta, so
// every non-zero-delta second should record a continuation.
func TestBuildPopulatesFirstPassageForSteadyContinuation(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := makeWindow(start, func(sec int) float64 { return 100 + float64(sec)*0.1 })

	report := Build(window, testAlphaPrior, testBetaPrior)
	require.Equal(t, int64(1), report.WindowsObserved)

	var continued, reversed int64
	for _, c := range report.Matrix.FirstPassage {
		continued += c.CountContinue
		reversed += c.CountReverse
	}
	assert.Greater(t, continued, int64(0))
	assert.Equal(t, int64(0), reversed)
}

// TestBuildPopulatesFirstPassageForReversal builds a window that spikes away
// from the open early on, then falls back to $0.10 above the open by window
// close: the mid-window delta buckets should record reversals since the
// final delta (+0.1) is smaller in magnitude than theirs.
func TestBuildPopulatesFirstPassageForReversal(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := makeWindow(start, func(sec int) float64 {
		switch {
		case sec < 450:
			return 100 + float64(sec)*0.1
		default:
			return 100 + float64(900-sec)*0.1
		}
	})

	report := Build(window, testAlphaPrior, testBetaPrior)
	require.Equal(t, int64(1), report.WindowsObserved)

	var reversed int64
	for _, c := range report.Matrix.FirstPassage {
		reversed += c.CountReverse
	}
	assert.Greater(t, reversed, int64(0))
}
