package matrix

import (
	"github.com/mselser95/btc15m-maker/internal/bucketing"
	"github.com/mselser95/btc15m-maker/internal/stats"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

// FirstPassageCell holds, for one (TimeBucket, DeltaBucket) coordinate, the
// observed frequency that the price delta holds its direction (same sign and
// at least the same magnitude at window end) rather than reverting. Supplements the main Cell grid with a continuation/reversal
// signal the sell-side exit strategy can consult instead of holding to
// expiry unconditionally (original_source/src/bot/strategy.rs
// ExitStrategyResult).
type FirstPassageCell struct {
	Time  bucketing.TimeBucket  `json:"time_bucket"`
	Delta bucketing.DeltaBucket `json:"delta_bucket"`

	CountContinue int64 `json:"count_continue"`
	CountReverse  int64 `json:"count_reverse"`

	PContinue  float64          `json:"p_continue"`
	Confidence types.Confidence `json:"confidence"`
}

// N is the total sample count backing this cell.
func (c FirstPassageCell) N() int64 {
	return c.CountContinue + c.CountReverse
}

// Recompute derives PContinue and the confidence classification from the raw
// counts. Must be called after every mutation before the cell is read.
func (c *FirstPassageCell) Recompute(alphaPrior, betaPrior float64) {
	n := c.N()
	alpha, beta := stats.BetaPosterior(c.CountContinue, c.CountReverse, alphaPrior, betaPrior)
	c.PContinue = stats.BetaMean(alpha, beta)
	c.Confidence = types.ConfidenceFromSampleCount(n)
}

// AddObservation records one historical instance of a window passing through
// this cell: continued means the delta at window close has the same sign as
// at this cell and a magnitude at least as large (the move held or kept
// going); reversed means it pulled back or flipped sign.
func (c *FirstPassageCell) AddObservation(continued bool) {
	if continued {
		c.CountContinue++
	} else {
		c.CountReverse++
	}
}

// newFirstPassageCells allocates a fully-populated, zeroed grid matching the
// main Matrix's coordinate space.
func newFirstPassageCells() []FirstPassageCell {
	cells := make([]FirstPassageCell, bucketing.TimeBuckets*bucketing.DeltaBucketCount)
	for t := 0; t < bucketing.TimeBuckets; t++ {
		for d := 0; d < bucketing.DeltaBucketCount; d++ {
			cells[cellIndex(bucketing.TimeBucket(t), bucketing.DeltaBucket(d+bucketing.DeltaBucketMin))] = FirstPassageCell{
				Time:  bucketing.TimeBucket(t),
				Delta: bucketing.DeltaBucket(d + bucketing.DeltaBucketMin),
			}
		}
	}
	return cells
}

// FirstPassageCell returns the cell at coordinate (t, d) by value.
func (m *Matrix) FirstPassageCell(t bucketing.TimeBucket, d bucketing.DeltaBucket) FirstPassageCell {
	return m.FirstPassage[cellIndex(t, d)]
}

// FirstPassageCellAt returns a pointer to the cell at (t, d) for in-place
// mutation by the Builder.
func (m *Matrix) FirstPassageCellAt(t bucketing.TimeBucket, d bucketing.DeltaBucket) *FirstPassageCell {
	return &m.FirstPassage[cellIndex(t, d)]
}

// RecomputeFirstPassage recomputes derived statistics for every first-passage
// cell. Called once after the builder finishes accumulating raw counts.
func (m *Matrix) RecomputeFirstPassage(alphaPrior, betaPrior float64) {
	for i := range m.FirstPassage {
		m.FirstPassage[i].Recompute(alphaPrior, betaPrior)
	}
}
