package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BankrollGauge tracks the current bankroll in USDC.
	BankrollGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btc15m_risk_bankroll_usdc",
		Help: "Current bankroll in USDC",
	})

	// RealizedPnLTodayGauge tracks today's rolling realized P&L.
	RealizedPnLTodayGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btc15m_risk_realized_pnl_today_usdc",
		Help: "Realized profit and loss for the current UTC day",
	})

	// OpenPositionsGauge tracks the number of currently open positions.
	OpenPositionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btc15m_risk_open_positions",
		Help: "Number of currently open positions",
	})

	// ConsecutiveLossesGauge tracks the current losing streak length.
	ConsecutiveLossesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btc15m_risk_consecutive_losses",
		Help: "Length of the current consecutive-loss streak",
	})

	// DailyLossLimitHitsTotal counts how many ticks were blocked by the daily
	// loss limit.
	DailyLossLimitHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btc15m_risk_daily_loss_limit_hits_total",
		Help: "Total number of ticks blocked by the daily loss limit",
	})
)
