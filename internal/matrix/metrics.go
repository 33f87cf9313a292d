package matrix

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnapshotsSavedTotal tracks how many snapshots have been persisted.
	SnapshotsSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btc15m_matrix_snapshots_saved_total",
		Help: "Total number of matrix snapshots saved",
	})

	// ActiveSnapshotID is the currently active snapshot's id.
	ActiveSnapshotID = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btc15m_matrix_active_snapshot_id",
		Help: "Identifier of the currently active matrix snapshot",
	})

	// ActiveSnapshotAgeSeconds tracks how stale the active snapshot is.
	ActiveSnapshotAgeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btc15m_matrix_active_snapshot_age_seconds",
		Help: "Age in seconds of the currently active matrix snapshot",
	})

	// BuildDisqualifiedWindows tracks windows thrown out for incomplete candle
	// coverage during the last build.
	BuildDisqualifiedWindows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btc15m_matrix_build_disqualified_windows",
		Help: "Windows discarded in the most recent build for incomplete candle coverage",
	})

	// BuildDurationSeconds tracks how long a Build call took.
	BuildDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "btc15m_matrix_build_duration_seconds",
		Help:    "Duration of a Matrix Builder run",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
