package matrix

import (
	"fmt"
	"time"

	"github.com/mselser95/btc15m-maker/internal/bucketing"
)

// BucketingSchemeID identifies the cut-point table Bucketing applies. Bumped
// whenever the cut-points change so a Builder and a Store never silently mix
// matrices built under different schemes.
const BucketingSchemeID = "v1-60x34-asymmetric"

// Metadata describes the provenance of a Matrix, per spec §3.
type Metadata struct {
	TotalWindowsObserved int64     `json:"total_windows_observed"`
	DataSpanStart        time.Time `json:"data_span_start"`
	DataSpanEnd           time.Time `json:"data_span_end"`
	CreatedAt            time.Time `json:"created_at"`
	BucketingSchemeID    string    `json:"bucketing_scheme_id"`
	DisqualifiedWindows  int64     `json:"disqualified_windows"`
}

// Matrix is the dense grid of cells over (TimeBucket, DeltaBucket), plus
// provenance metadata. FirstPassage is a second, same-shaped grid backing the
// supplemented first-passage exit strategy (continuation vs reversal
// frequency rather than final UP/DOWN outcome); see firstpassage.go.
type Matrix struct {
	Meta  Metadata `json:"meta"`
	Cells []Cell   `json:"cells"`

	FirstPassage []FirstPassageCell `json:"first_passage,omitempty"`
}

// New allocates a fully-populated, zeroed Matrix covering every coordinate.
func New() *Matrix {
	cells := make([]Cell, bucketing.TimeBuckets*bucketing.DeltaBucketCount)
	for t := 0; t < bucketing.TimeBuckets; t++ {
		for d := 0; d < bucketing.DeltaBucketCount; d++ {
			cells[cellIndex(bucketing.TimeBucket(t), bucketing.DeltaBucket(d+bucketing.DeltaBucketMin))] = Cell{
				Time:  bucketing.TimeBucket(t),
				Delta: bucketing.DeltaBucket(d + bucketing.DeltaBucketMin),
			}
		}
	}
	return &Matrix{
		Meta: Metadata{
			CreatedAt:         time.Now(),
			BucketingSchemeID: BucketingSchemeID,
		},
		Cells:        cells,
		FirstPassage: newFirstPassageCells(),
	}
}

func cellIndex(t bucketing.TimeBucket, d bucketing.DeltaBucket) int {
	return int(t)*bucketing.DeltaBucketCount + d.Index()
}

// Cell returns the cell at coordinate (t, d) by value.
func (m *Matrix) Cell(t bucketing.TimeBucket, d bucketing.DeltaBucket) Cell {
	return m.Cells[cellIndex(t, d)]
}

// CellAt returns a pointer to the cell at coordinate (t, d) for in-place
// mutation by the Builder.
func (m *Matrix) CellAt(t bucketing.TimeBucket, d bucketing.DeltaBucket) *Cell {
	return &m.Cells[cellIndex(t, d)]
}

// RecomputeAll recomputes derived statistics for every cell. Called once after
// the builder finishes accumulating raw counts.
func (m *Matrix) RecomputeAll(alphaPrior, betaPrior float64) {
	for i := range m.Cells {
		m.Cells[i].Recompute(alphaPrior, betaPrior)
	}
}

// Validate checks every per-cell invariant (spec §8). Returns the first
// violation found, or nil. The aggregate total-windows count is not checked.
func (m *Matrix) Validate() error {
	for _, c := range m.Cells {
		if !c.Valid() {
			return fmt.Errorf("matrix: invariant violated at (t=%d,d=%d): p_up=%.6f wilson=[%.6f,%.6f]",
				c.Time, c.Delta, c.PUp, c.WilsonLower, c.WilsonUpper)
		}
	}
	return nil
}

// ObservationsPerWindow is the number of (time,delta) samples a single
// complete window contributes: one per second, i.e. one per TimeBucket's
// resolution multiplied across the whole window — in practice one candle per
// second, so it equals 900 divided by the candle period. Bucketing observes
// one candle per second, so this is always 900.
const ObservationsPerWindow = 900
