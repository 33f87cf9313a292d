package matrix

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mselser95/btc15m-maker/internal/bucketing"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

// BuildReport summarizes a Build run: how many windows were folded in, how
// many were thrown out for incomplete coverage, and the resulting Matrix.
// Never extrapolates across gaps (spec §4.C "Failure semantics").
type BuildReport struct {
	Matrix              *Matrix
	WindowsObserved      int64
	DisqualifiedWindows int64
	SpanStart           time.Time
	SpanEnd             time.Time
}

// Build folds an ordered sequence of 1-second BTC OHLC candles into a Matrix.
// Build is deterministic in its candles (spec §8 "Determinism"): the same
// input, in any order, always yields the same cells and metadata, except
// Meta.CreatedAt, which records the time of the build.
func Build(candles []types.Candle, alphaPrior, betaPrior float64) BuildReport {
	windows := groupByWindow(candles)

	m := New()
	var observed, disqualified int64
	var spanStart, spanEnd time.Time

	for _, start := range sortedKeys(windows) {
		group := windows[start]
		if !isComplete(group) {
			disqualified++
			continue
		}

		sort.Slice(group, func(i, j int) bool { return group[i].Timestamp.Before(group[j].Timestamp) })

		openPrice := group[0].Open
		closePrice := group[len(group)-1].Close
		outcome := types.ClassifyOutcome(openPrice, closePrice)

		finalDelta := closePrice.Sub(openPrice)

		for _, c := range group {
			seconds := types.SecondsIntoWindow(start, c.Timestamp)
			delta := c.Close.Sub(openPrice)
			coord := bucketing.Bucket(seconds, delta)
			if coord.OutOfRange {
				continue
			}
			m.CellAt(coord.Time, coord.Delta).AddObservation(outcome)

			if !delta.IsZero() {
				m.FirstPassageCellAt(coord.Time, coord.Delta).AddObservation(continuesSameDirection(delta, finalDelta))
			}
		}

		observed++
		if spanStart.IsZero() || start.Before(spanStart) {
			spanStart = start
		}
		end := start.Add(types.WindowDuration)
		if end.After(spanEnd) {
			spanEnd = end
		}
	}

	m.RecomputeAll(alphaPrior, betaPrior)
	m.RecomputeFirstPassage(alphaPrior, betaPrior)
	m.Meta.TotalWindowsObserved = observed
	m.Meta.DisqualifiedWindows = disqualified
	m.Meta.DataSpanStart = spanStart
	m.Meta.DataSpanEnd = spanEnd

	return BuildReport{
		Matrix:              m,
		WindowsObserved:      observed,
		DisqualifiedWindows: disqualified,
		SpanStart:           spanStart,
		SpanEnd:             spanEnd,
	}
}

// continuesSameDirection reports whether the window's final delta kept
// moving the same way currentDelta was already moving: same sign, and at
// least as large in magnitude.
func continuesSameDirection(currentDelta, finalDelta decimal.Decimal) bool {
	if currentDelta.Sign() != finalDelta.Sign() {
		return false
	}
	return finalDelta.Abs().GreaterThanOrEqual(currentDelta.Abs())
}

func groupByWindow(candles []types.Candle) map[time.Time][]types.Candle {
	windows := make(map[time.Time][]types.Candle)
	for _, c := range candles {
		start := types.AlignWindowStart(c.Timestamp)
		windows[start] = append(windows[start], c)
	}
	return windows
}

func sortedKeys(windows map[time.Time][]types.Candle) []time.Time {
	keys := make([]time.Time, 0, len(windows))
	for k := range windows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// isComplete reports whether group covers every second of the 900-second
// window exactly once, i.e. the window has no gaps a builder would otherwise
// have to silently extrapolate across.
func isComplete(group []types.Candle) bool {
	if len(group) != ObservationsPerWindow {
		return false
	}
	start := types.AlignWindowStart(group[0].Timestamp)
	seen := make(map[int]bool, len(group))
	for _, c := range group {
		if types.AlignWindowStart(c.Timestamp) != start {
			return false
		}
		sec := types.SecondsIntoWindow(start, c.Timestamp)
		if seen[sec] {
			return false
		}
		seen[sec] = true
	}
	return len(seen) == ObservationsPerWindow
}
