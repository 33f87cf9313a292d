package matrix

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mselser95/btc15m-maker/internal/bucketing"
)

// SchemeManifest is the static, versioned description of Bucketing's
// cut-point table (spec.md §4.A), kept as a YAML config surface so a Builder
// and a Store can confirm they agree on the scheme a matrix was built under
// without redeploying code. The teacher has no analogue for this — bucketing
// boundaries never change in the arbitrage domain.
type SchemeManifest struct {
	VersionID           string    `yaml:"version_id"`
	TimeBuckets         int       `yaml:"time_buckets"`
	SecondsPerWindow    int       `yaml:"seconds_per_window"`
	NegativeUpperBounds []float64 `yaml:"negative_upper_bounds"`
	PositiveUpperBounds []float64 `yaml:"positive_upper_bounds"`
}

// LoadScheme reads a SchemeManifest from path.
func LoadScheme(path string) (*SchemeManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bucketing scheme %s: %w", path, err)
	}

	var m SchemeManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse bucketing scheme %s: %w", path, err)
	}

	return &m, nil
}

// DefaultScheme returns the manifest matching the cut-points compiled into
// package bucketing, so a fresh deployment can write one out without hand
// transcription.
func DefaultScheme() *SchemeManifest {
	return &SchemeManifest{
		VersionID:           BucketingSchemeID,
		TimeBuckets:         bucketing.TimeBuckets,
		SecondsPerWindow:    900,
		NegativeUpperBounds: []float64{-300, -260, -230, -200, -170, -140, -110, -90, -70, -50, -40, -30, -20, -15, -10, -5, 0},
		PositiveUpperBounds: []float64{5, 10, 15, 20, 30, 40, 50, 70, 90, 110, 140, 170, 200, 230, 260, 300},
	}
}

// Validate confirms m matches the scheme compiled into this binary. A
// mismatch means a matrix snapshot built under a different scheme could be
// loaded and misread cell-for-cell — an Invariant-class error (spec §7),
// fatal at startup.
func (m *SchemeManifest) Validate() error {
	want := DefaultScheme()

	if m.VersionID != want.VersionID {
		return fmt.Errorf("bucketing scheme version mismatch: manifest=%s compiled=%s", m.VersionID, want.VersionID)
	}
	if m.TimeBuckets != want.TimeBuckets {
		return fmt.Errorf("bucketing scheme time_buckets mismatch: manifest=%d compiled=%d", m.TimeBuckets, want.TimeBuckets)
	}
	if len(m.NegativeUpperBounds) != len(want.NegativeUpperBounds) || len(m.PositiveUpperBounds) != len(want.PositiveUpperBounds) {
		return fmt.Errorf("bucketing scheme cut-point count mismatch")
	}
	for i := range m.NegativeUpperBounds {
		if m.NegativeUpperBounds[i] != want.NegativeUpperBounds[i] {
			return fmt.Errorf("bucketing scheme negative cut-point %d mismatch: manifest=%v compiled=%v", i, m.NegativeUpperBounds[i], want.NegativeUpperBounds[i])
		}
	}
	for i := range m.PositiveUpperBounds {
		if m.PositiveUpperBounds[i] != want.PositiveUpperBounds[i] {
			return fmt.Errorf("bucketing scheme positive cut-point %d mismatch: manifest=%v compiled=%v", i, m.PositiveUpperBounds[i], want.PositiveUpperBounds[i])
		}
	}
	return nil
}
