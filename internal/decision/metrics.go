package decision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TickDurationSeconds tracks wall-clock time spent per tick.
var TickDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "btc15m_decision_tick_duration_seconds",
	Help:    "Duration of one Decision Engine tick.",
	Buckets: prometheus.DefBuckets,
})

// FiltersRejectedTotal counts, by filter name, how many candidate bets were
// rejected at each stage of the ordered filter chain (spec §4.G step 6).
var FiltersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "btc15m_decision_filter_rejections_total",
	Help: "Candidate bets rejected, labeled by the filter that rejected them.",
}, []string{"filter"})
