// Package decision implements the Decision Engine (spec §4.G): the polling
// loop that, each tick, reads the current window's timing, fetches spot and
// book prices, evaluates edge per direction against the probability matrix,
// runs the ordered filter chain, sizes via Kelly, and emits BUY/SELL intents
// to the Execution State Machine.
package decision

import (
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/internal/collaborators"
	"github.com/mselser95/btc15m-maker/internal/edge"
	"github.com/mselser95/btc15m-maker/internal/execution"
	"github.com/mselser95/btc15m-maker/internal/risk"
	"github.com/mselser95/btc15m-maker/internal/sizing"
	"github.com/mselser95/btc15m-maker/internal/storage"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

// Config configures an Engine. Mirrors the teacher's discovery.Config shape:
// a flat struct of collaborators and tunables plus a logger.
type Config struct {
	TickInterval        time.Duration    // default 500ms
	MinSecondsElapsed   int              // default 60, spec §4.G step 1
	MinSecondsRemaining int              // default 15, spec §4.G step 1
	MinConfidence       types.Confidence
	MomentumAlignment   bool    // default true, spec §4.G step 6
	LiquidityMargin     float64 // default 1.0, spec §4.G step 6
	MaxBetsPerWindow    int     // default 1
	SellProfitThreshold float64 // 0 disables, spec §4.G "default disabled in favor of hold-to-expiry"

	// SellStrategy selects the sell-side exit rule: "hold" (default) sells only
	// once SellProfitThreshold is cleared and otherwise holds to expiry;
	// "exit_ev" additionally
	// consults the Matrix's first-passage grid and takes profit early when
	// continuation looks unlikely (original_source/src/bot/strategy.rs
	// ExitStrategyResult).
	SellStrategy              string
	ExitContinuationThreshold float64 // below this PContinue, exit_ev sells even short of SellProfitThreshold

	Spot     collaborators.SpotPriceSource
	Market   collaborators.PredictionMarket
	Exec     *execution.Manager
	EdgeCalc *edge.Calculator
	Sizer    *sizing.Sizer
	Risk     *risk.Accounting
	Storage  storage.Store
	Logger   *zap.Logger
}

// DefaultConfig returns spec-default tunables; callers still must set the
// collaborators and Logger fields.
func DefaultConfig() Config {
	return Config{
		TickInterval:        500 * time.Millisecond,
		MinSecondsElapsed:   60,
		MinSecondsRemaining: 15,
		MinConfidence:       types.Moderate,
		MomentumAlignment:   true,
		LiquidityMargin:     1.0,
		MaxBetsPerWindow:    1,
		SellProfitThreshold: 0,
		SellStrategy:        "hold",
	}
}

// State is the Decision Engine's coarse tick-to-tick state, per spec §4.G.
type State int

const (
	Idle State = iota
	Observing
	Intending
	CoolingDown
)

func (s State) String() string {
	switch s {
	case Observing:
		return "OBSERVING"
	case Intending:
		return "INTENDING"
	case CoolingDown:
		return "COOLING_DOWN"
	default:
		return "IDLE"
	}
}
