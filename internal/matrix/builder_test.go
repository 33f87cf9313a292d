package matrix

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/btc15m-maker/pkg/types"
)

const (
	testAlphaPrior = 1.0
	testBetaPrior  = 1.0
)

func makeWindow(start time.Time, path func(sec int) float64) []types.Candle {
	out := make([]types.Candle, 0, 900)
	prevClose := path(0)
	for s := 0; s < 900; s++ {
		px := path(s)
		out = append(out, types.Candle{
			Timestamp: start.Add(time.Duration(s) * time.Second),
			Open:      decimal.NewFromFloat(prevClose),
			Close:     decimal.NewFromFloat(px),
		})
		prevClose = px
	}
	return out
}

func TestBuildCompleteWindowGoesUp(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := makeWindow(start, func(sec int) float64 { return 100 + float64(sec)*0.1 })

	report := Build(window, testAlphaPrior, testBetaPrior)
	require.Equal(t, int64(1), report.WindowsObserved)
	require.Equal(t, int64(0), report.DisqualifiedWindows)

	var total int64
	for _, c := range report.Matrix.Cells {
		total += c.CountUp + c.CountDown
	}
	assert.Equal(t, int64(900), total)
}

func TestBuildDisqualifiesIncompleteWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := makeWindow(start, func(sec int) float64 { return 100 })
	window = append(window[:400], window[401:]...) // drop one second mid-window

	report := Build(window, testAlphaPrior, testBetaPrior)
	assert.Equal(t, int64(0), report.WindowsObserved)
	assert.Equal(t, int64(1), report.DisqualifiedWindows)
}

func TestBuildIsDeterministic(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := makeWindow(start, func(sec int) float64 { return 100 + float64(sec%17)*0.3 })

	r1 := Build(window, testAlphaPrior, testBetaPrior)
	r2 := Build(window, testAlphaPrior, testBetaPrior)
	assert.Equal(t, r1.Matrix.Cells, r2.Matrix.Cells)
}

func TestMatrixValidateAfterBuild(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := makeWindow(start, func(sec int) float64 { return 100 - float64(sec)*0.05 })

	report := Build(window, testAlphaPrior, testBetaPrior)
	assert.NoError(t, report.Matrix.Validate())
}

func TestBuildMultipleWindowsAccumulate(t *testing.T) {
	start1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	start2 := start1.Add(types.WindowDuration)

	w1 := makeWindow(start1, func(sec int) float64 { return 100 })
	w2 := makeWindow(start2, func(sec int) float64 { return 200 })
	candles := append(w1, w2...)

	report := Build(candles, testAlphaPrior, testBetaPrior)
	assert.Equal(t, int64(2), report.WindowsObserved)
}
