package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PositionsOpenedTotal tracks BUY legs submitted, by direction.
	PositionsOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btc15m_execution_positions_opened_total",
			Help: "Total number of positions opened, by direction",
		},
		[]string{"direction"},
	)

	// PositionsClosedTotal tracks positions reaching a terminal state, by
	// final status.
	PositionsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btc15m_execution_positions_closed_total",
			Help: "Total number of positions closed, by final status",
		},
		[]string{"status"},
	)

	// ExecutionDurationSeconds tracks how long a single BUY or SELL
	// submission took end to end, including retries.
	ExecutionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "btc15m_execution_duration_seconds",
			Help:    "Duration of an order submission including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"side"},
	)

	// ExecutionRetriesTotal tracks retry attempts by order side.
	ExecutionRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btc15m_execution_retries_total",
			Help: "Total number of order submission retries",
		},
		[]string{"side"},
	)

	// ExecutionFailuresTotal tracks fatal execution failures.
	ExecutionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btc15m_execution_failures_total",
		Help: "Total number of fatal execution failures",
	})

	// PartialFillsTotal tracks executions that settled partially filled.
	PartialFillsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btc15m_execution_partial_fills_total",
		Help: "Total number of partially-filled executions",
	})
)
