// Package matrix implements the probability matrix: the dense grid of cells the
// Edge Calculator reads from, the offline builder that populates it from
// historical candles, and the store that persists and hot-swaps snapshots
// (spec §4.C, §4.D).
package matrix

import (
	"github.com/mselser95/btc15m-maker/internal/bucketing"
	"github.com/mselser95/btc15m-maker/internal/stats"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

// Cell holds the raw observation counts and derived statistics for one
// (TimeBucket, DeltaBucket) coordinate, per spec §3.
type Cell struct {
	Time  bucketing.TimeBucket `json:"time_bucket"`
	Delta bucketing.DeltaBucket `json:"delta_bucket"`

	CountUp   int64 `json:"count_up"`
	CountDown int64 `json:"count_down"`

	PUp          float64 `json:"p_up"`
	WilsonLower  float64 `json:"wilson_lower"`
	WilsonUpper  float64 `json:"wilson_upper"`
	PosteriorMean float64 `json:"posterior_mean"`

	Confidence types.Confidence `json:"confidence"`
}

// N is the total sample count backing this cell.
func (c Cell) N() int64 {
	return c.CountUp + c.CountDown
}

// Recompute derives PUp, the Wilson bounds, the Beta-Binomial posterior mean,
// and the confidence classification from CountUp/CountDown. Must be called
// after every mutation of the counts before the cell is read.
func (c *Cell) Recompute(alphaPrior, betaPrior float64) {
	n := c.N()
	if n == 0 {
		c.PUp = 0
		c.WilsonLower, c.WilsonUpper = 0, 1
	} else {
		c.PUp = float64(c.CountUp) / float64(n)
		c.WilsonLower, c.WilsonUpper = stats.WilsonInterval(c.CountUp, n)
	}

	alpha, beta := stats.BetaPosterior(c.CountUp, c.CountDown, alphaPrior, betaPrior)
	c.PosteriorMean = stats.BetaMean(alpha, beta)
	c.Confidence = types.ConfidenceFromSampleCount(n)
}

// AddObservation increments the cell's count for the given outcome. Callers
// must call Recompute afterward; AddObservation never recomputes itself so the
// builder can batch many observations before paying the recompute cost.
func (c *Cell) AddObservation(outcome types.Outcome) {
	if outcome == types.Up {
		c.CountUp++
	} else {
		c.CountDown++
	}
}

// Valid checks the per-cell invariant from spec §8: p_up + p_down == 1 and
// wilson_lower <= p_up <= wilson_upper, both clamped to [0,1].
func (c Cell) Valid() bool {
	if c.N() == 0 {
		return true
	}
	const eps = 1e-9
	if c.PUp < -eps || c.PUp > 1+eps {
		return false
	}
	if c.WilsonLower > c.PUp+eps || c.PUp > c.WilsonUpper+eps {
		return false
	}
	return true
}
