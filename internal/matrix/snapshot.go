package matrix

import "time"

// Snapshot is a persisted Matrix with a monotonic identifier. At most one
// Snapshot is IsActive at a time across the whole store (spec §3).
type Snapshot struct {
	ID       int64     `json:"id"`
	Matrix   *Matrix   `json:"matrix"`
	IsActive bool      `json:"is_active"`
	SavedAt  time.Time `json:"saved_at"`
}

// Age reports how long ago this snapshot was saved.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.SavedAt)
}
