// Package bucketing maps a window's elapsed time and BTC price delta onto the
// discrete (TimeBucket, DeltaBucket) coordinates the probability matrix is
// indexed by (spec §4.A). The mapping is pure, deterministic, and total: every
// input — including out-of-range ones — resolves to a cell.
package bucketing

import "github.com/shopspring/decimal"

// TimeBuckets is the chosen resolution: 60 buckets of 15 seconds each across the
// 900-second window. (The spec's 30-bucket/30-second variant was considered and
// rejected — see DESIGN.md.)
const TimeBuckets = 60

const secondsPerBucket = 900 / TimeBuckets

// DeltaBucketMin and DeltaBucketMax bound the signed delta-bucket axis: 17
// negative buckets and 16 non-negative ones, open-ended at both tails.
const (
	DeltaBucketMin = -17
	DeltaBucketMax = 16
)

// TimeBucket indexes a 15-second sub-interval within the 900-second window.
type TimeBucket int

// DeltaBucket indexes the signed, unevenly-spaced partition of current-minus-open
// price described in cutpoints().
type DeltaBucket int

// Coordinate is a cell address, plus a flag recording whether either axis had to
// clip an out-of-range input.
type Coordinate struct {
	Time         TimeBucket
	Delta        DeltaBucket
	OutOfRange   bool
}

// BucketTime maps seconds elapsed into the window (expected [0,900)) to a
// TimeBucket. Inputs outside that range clip to the first/last bucket.
func BucketTime(secondsIntoWindow int) (TimeBucket, bool) {
	if secondsIntoWindow < 0 {
		return 0, true
	}
	if secondsIntoWindow >= 900 {
		return TimeBuckets - 1, true
	}
	return TimeBucket(secondsIntoWindow / secondsPerBucket), false
}

// cutpoints are the upper bounds (exclusive) of each negative bucket and each
// non-negative bucket, in dollars, widening outward from zero. Reproduced from
// the historical data source (original_source/src/models.rs) so builder and
// query agree bucket-for-bucket.
//
// Negative buckets -17..-1 (finest near zero, $5 wide, widening to $30+ at the
// tails); non-negative buckets 0..16 mirror the same widths on the positive side.
var negativeUpperBounds = []float64{
	-300, -260, -230, -200, -170, -140, -110, -90, -70, -50, -40, -30, -20, -15, -10, -5, 0,
}

var positiveUpperBounds = []float64{
	5, 10, 15, 20, 30, 40, 50, 70, 90, 110, 140, 170, 200, 230, 260, 300,
}

// BucketDelta maps a signed price delta (current - open, in USD) to a DeltaBucket.
// Deltas beyond the outermost cut-point clip to DeltaBucketMin/DeltaBucketMax and
// report outOfRange=true.
func BucketDelta(delta decimal.Decimal) (DeltaBucket, bool) {
	d, _ := delta.Float64()

	if d < 0 {
		for i, upper := range negativeUpperBounds {
			if d < upper {
				bucket := DeltaBucketMin + i
				return DeltaBucket(bucket), bucket == DeltaBucketMin
			}
		}
		// d in [-5, 0)
		return DeltaBucket(-1), false
	}

	for i, upper := range positiveUpperBounds {
		if d < upper {
			return DeltaBucket(i), false
		}
	}
	return DeltaBucket(DeltaBucketMax), true
}

// Bucket maps (secondsIntoWindow, delta) to a full Coordinate.
func Bucket(secondsIntoWindow int, delta decimal.Decimal) Coordinate {
	t, tOOR := BucketTime(secondsIntoWindow)
	d, dOOR := BucketDelta(delta)
	return Coordinate{Time: t, Delta: d, OutOfRange: tOOR || dOOR}
}

// DeltaBucketCount is the number of distinct delta buckets (-17..+16 inclusive).
const DeltaBucketCount = DeltaBucketMax - DeltaBucketMin + 1

// Index converts a DeltaBucket to a zero-based slice index.
func (d DeltaBucket) Index() int {
	return int(d) - DeltaBucketMin
}
