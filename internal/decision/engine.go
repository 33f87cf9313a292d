package decision

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/internal/bucketing"
	"github.com/mselser95/btc15m-maker/internal/collaborators"
	"github.com/mselser95/btc15m-maker/internal/edge"
	"github.com/mselser95/btc15m-maker/internal/matrix"
	"github.com/mselser95/btc15m-maker/internal/sizing"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

// windowState tracks the per-window bookkeeping the Engine needs across
// ticks: the observed open price (first spot seen this window) and the
// positions opened so far, keyed by direction.
type windowState struct {
	openPrice decimal.Decimal
	positions map[types.Outcome]*types.Position
}

// Engine runs the Decision Engine's tick loop. The Matrix is held behind an
// atomic pointer so a hot-reloaded snapshot (spec §4.D) swaps in without a
// lock on the read path, matching spec §5's "read without locking" rule.
type Engine struct {
	cfg Config

	matrixRef atomic.Pointer[matrix.Matrix]
	state     atomic.Int32

	mu      sync.Mutex
	windows map[time.Time]*windowState
	lastSpot types.SpotQuote
}

// NewEngine builds an Engine around an initial Matrix. Use SetMatrix to
// hot-swap a newer snapshot later.
func NewEngine(cfg Config, m *matrix.Matrix) *Engine {
	if cfg.TickInterval == 0 {
		d := DefaultConfig()
		cfg.TickInterval = d.TickInterval
		if cfg.MinSecondsElapsed == 0 {
			cfg.MinSecondsElapsed = d.MinSecondsElapsed
		}
		if cfg.MinSecondsRemaining == 0 {
			cfg.MinSecondsRemaining = d.MinSecondsRemaining
		}
		if cfg.LiquidityMargin == 0 {
			cfg.LiquidityMargin = d.LiquidityMargin
		}
		if cfg.MaxBetsPerWindow == 0 {
			cfg.MaxBetsPerWindow = d.MaxBetsPerWindow
		}
	}
	e := &Engine{cfg: cfg, windows: make(map[time.Time]*windowState)}
	e.matrixRef.Store(m)
	e.state.Store(int32(Idle))
	return e
}

// SetMatrix hot-swaps the active Matrix (spec §4.D "compare-and-swap
// reference").
func (e *Engine) SetMatrix(m *matrix.Matrix) {
	e.matrixRef.Store(m)
}

// State returns the Engine's current coarse state, for status endpoints.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// WatchHotReload subscribes to snapshot-replaced notifications (spec §4.D
// hot-swap, §8 scenario 6) and reloads the active Matrix from store on each
// one, until ctx is cancelled or notifications closes. Grounded on the
// compare-and-swap reference spec §5 calls for: SetMatrix is the only
// writer, tick reads matrixRef without locking.
func (e *Engine) WatchHotReload(ctx context.Context, notifications <-chan string, store matrix.Store) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notifications:
			if !ok {
				return
			}
			snap, err := store.LoadActive(ctx)
			if err != nil {
				e.cfg.Logger.Error("hot-reload-load-failed", zap.Error(err))
				continue
			}
			if snap == nil {
				e.cfg.Logger.Warn("hot-reload-no-active-snapshot")
				continue
			}
			if err := snap.Matrix.Validate(); err != nil {
				e.cfg.Logger.Error("hot-reload-invalid-matrix", zap.Error(err))
				continue
			}
			e.SetMatrix(snap.Matrix)
			e.cfg.Logger.Info("hot-reload-applied", zap.Int64("snapshot-id", snap.ID))
		}
	}
}

// Run starts the tick loop, blocking until ctx is cancelled. Grounded on the
// teacher's discovery.Service.Run: ticker-driven, logs per-tick errors
// without stopping the loop.
func (e *Engine) Run(ctx context.Context) error {
	e.cfg.Logger.Info("decision-engine-starting",
		zap.Duration("tick-interval", e.cfg.TickInterval))

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.cfg.Logger.Info("decision-engine-stopping")
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := e.tick(ctx); err != nil {
				e.cfg.Logger.Warn("tick-failed", zap.Error(err))
			}
			TickDurationSeconds.Observe(time.Since(start).Seconds())
		}
	}
}

// tick runs one full decision cycle: timing gate, settlement of expired
// windows, spot/book fetch, per-direction edge evaluation, filters, sizing,
// and intent emission (spec §4.G).
func (e *Engine) tick(ctx context.Context) error {
	now := time.Now().UTC()

	e.settleExpiredWindows(ctx, now)

	windowStart := types.AlignWindowStart(now)
	secondsIntoWindow := types.SecondsIntoWindow(windowStart, now)
	secondsRemaining := types.SecondsRemaining(windowStart, now)

	if secondsIntoWindow < e.cfg.MinSecondsElapsed || secondsRemaining < e.cfg.MinSecondsRemaining {
		e.setState(Idle)
		return nil
	}
	e.setState(Observing)

	spot, err := e.cfg.Spot.GetLatestBTCUSD(ctx)
	if err != nil {
		return err
	}
	if err := collaborators.CheckFreshness(spot, now); err != nil {
		e.cfg.Logger.Warn("stale-spot-quote-skipping-tick", zap.Error(err))
		return nil
	}

	e.mu.Lock()
	e.lastSpot = spot
	ws, ok := e.windows[windowStart]
	if !ok {
		ws = &windowState{openPrice: spot.Price, positions: make(map[types.Outcome]*types.Position)}
		e.windows[windowStart] = ws
	}
	openPrice := ws.openPrice
	e.mu.Unlock()

	delta := spot.Price.Sub(openPrice)
	deltaBucket, _ := bucketing.BucketDelta(delta)
	timeBucket, _ := bucketing.BucketTime(secondsIntoWindow)
	cell := e.matrixRef.Load().Cell(timeBucket, deltaBucket)

	marketRef, err := e.cfg.Market.GetMarketByWindow(ctx, windowStart)
	if err != nil {
		return err
	}

	e.evaluateSellSide(ctx, windowStart, marketRef, timeBucket, deltaBucket)

	momentumSign := momentumSignOf(delta)

	upRec, upBook, err := e.evaluateDirection(ctx, cell, types.Up, marketRef.UpToken, windowStart)
	if err != nil {
		e.cfg.Logger.Debug("up-evaluation-skipped", zap.Error(err))
	}
	downRec, downBook, err := e.evaluateDirection(ctx, cell, types.Down, marketRef.DownToken, windowStart)
	if err != nil {
		e.cfg.Logger.Debug("down-evaluation-skipped", zap.Error(err))
	}

	best := edge.Best(upRec, downRec, momentumSign)
	if !best.ShouldBet {
		return nil
	}

	book := upBook
	token := marketRef.UpToken
	if best.Direction == types.Down {
		book = downBook
		token = marketRef.DownToken
	}

	e.setState(Intending)
	return e.considerBuy(ctx, windowStart, spot.Price, delta, best, book, token, now)
}

// evaluateDirection fetches the book for direction's token and computes its
// Recommendation, or a zero Recommendation if a position is already open for
// this (window, direction).
func (e *Engine) evaluateDirection(ctx context.Context, cell matrix.Cell, direction types.Outcome, token string, windowStart time.Time) (types.Recommendation, types.BookQuote, error) {
	if e.hasOpenPosition(windowStart, direction) {
		return types.Recommendation{}, types.BookQuote{}, nil
	}

	book, err := e.cfg.Market.GetBook(ctx, token)
	if err != nil {
		return types.Recommendation{}, types.BookQuote{}, err
	}

	askFloat, _ := book.BestAsk.Float64()
	rec := e.cfg.EdgeCalc.Evaluate(cell, direction, askFloat)
	return rec, book, nil
}

func (e *Engine) hasOpenPosition(windowStart time.Time, direction types.Outcome) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ws, ok := e.windows[windowStart]
	if !ok {
		return false
	}
	_, ok = ws.positions[direction]
	return ok
}

func momentumSignOf(delta decimal.Decimal) int {
	switch {
	case delta.IsPositive():
		return 1
	case delta.IsNegative():
		return -1
	default:
		return 0
	}
}

// considerBuy runs the ordered filter chain of spec §4.G step 6, sizes via
// Kelly, and — if everything clears — submits a BUY intent. Liquidity
// filtering needs a tentative share count, so sizing runs ahead of the
// liquidity check even though the spec lists liquidity first; every filter
// still runs in the stated order and aborts the tick on first failure.
func (e *Engine) considerBuy(ctx context.Context, windowStart time.Time, spotPrice, delta decimal.Decimal, best types.Recommendation, book types.BookQuote, token string, now time.Time) error {
	if best.Confidence < e.cfg.MinConfidence {
		FiltersRejectedTotal.WithLabelValues("confidence").Inc()
		return nil
	}

	if e.cfg.MomentumAlignment {
		sign := momentumSignOf(delta)
		if sign != 0 && !momentumAligned(best.Direction, sign) {
			FiltersRejectedTotal.WithLabelValues("momentum").Inc()
			return nil
		}
	}

	snapshot := e.cfg.Risk.Snapshot()
	dailyLossExceeded := e.cfg.Risk.DailyLossExceeded(now)

	requiredEdge, eligible := e.cfg.EdgeCalc.RequiredEdge(best.Confidence)
	if eligible {
		requiredEdge *= e.cfg.Risk.CooldownEdgeMultiplier()
		if best.Edge < requiredEdge {
			FiltersRejectedTotal.WithLabelValues("cooldown").Inc()
			e.setState(CoolingDown)
			return nil
		}
	}

	result := e.cfg.Sizer.Size(best.OurProbability, best.MarketProbability, best.Confidence, snapshot.Bankroll, dailyLossExceeded)
	lossFactor := e.cfg.Risk.LossReductionFactor()
	usdc := result.USDC
	if lossFactor != 1.0 {
		usdc = usdc.Mul(decimal.NewFromFloat(sizing.ApplyLossReduction(1.0, lossFactor)))
	}

	if usdc.IsZero() {
		return nil
	}

	shares := usdc.Div(book.BestAsk)
	liquidityFloor := shares.Mul(decimal.NewFromFloat(e.cfg.LiquidityMargin))
	if book.BestAskSize.LessThan(liquidityFloor) {
		FiltersRejectedTotal.WithLabelValues("liquidity").Inc()
		return nil
	}

	if !e.cfg.Risk.BetsRemainingInWindow(windowStart, e.cfg.MaxBetsPerWindow) {
		FiltersRejectedTotal.WithLabelValues("per_window_cap").Inc()
		return nil
	}

	if !e.cfg.Risk.CanBet(usdc, now) {
		FiltersRejectedTotal.WithLabelValues("risk_cutoff").Inc()
		return nil
	}

	intent := types.Intent{
		Kind:        types.IntentBuy,
		WindowStart: windowStart,
		Direction:   best.Direction,
		Token:       token,
		Price:       book.BestAsk,
		USDC:        usdc,
		PositionID:  uuid.NewString(),
		Context: types.DecisionContext{
			BTCPrice:          spotPrice,
			Delta:             delta,
			Edge:              best.Edge,
			OurProbability:    best.OurProbability,
			MarketProbability: best.MarketProbability,
			BestAsk:           book.BestAsk,
			BestAskSize:       book.BestAskSize,
			BestBid:           book.BestBid,
			BestBidSize:       book.BestBidSize,
		},
	}

	position, err := e.cfg.Exec.SubmitBuy(ctx, intent)
	if err != nil {
		e.cfg.Logger.Warn("submit-buy-failed", zap.String("position-id", intent.PositionID), zap.Error(err))
	}
	if position == nil {
		return err
	}

	e.mu.Lock()
	ws := e.windows[windowStart]
	ws.positions[best.Direction] = position
	e.mu.Unlock()

	e.cfg.Risk.RecordBet(windowStart)
	if e.cfg.Storage != nil {
		if serr := e.cfg.Storage.SavePosition(ctx, position); serr != nil {
			e.cfg.Logger.Error("save-position-failed", zap.String("position-id", position.PositionID), zap.Error(serr))
		}
	}
	return err
}

func momentumAligned(direction types.Outcome, momentumSign int) bool {
	if direction == types.Up {
		return momentumSign > 0
	}
	return momentumSign < 0
}

// evaluateSellSide checks every still-open position in windowStart for the
// optional sell-side exit (spec §4.G "sell_profit_threshold"). Disabled by
// default (threshold 0) in favor of hold-to-expiry. When cfg.SellStrategy is
// "exit_ev", a position also exits once the Matrix's first-passage grid
// shows continuation has become unlikely at the window's current bucket,
// even if SellProfitThreshold hasn't been cleared yet (supplemented exit
// strategy, original_source/src/bot/strategy.rs ExitStrategyResult).
func (e *Engine) evaluateSellSide(ctx context.Context, windowStart time.Time, ref types.MarketRef, timeBucket bucketing.TimeBucket, deltaBucket bucketing.DeltaBucket) {
	if e.cfg.SellProfitThreshold <= 0 && e.cfg.SellStrategy != "exit_ev" {
		return
	}

	e.mu.Lock()
	ws, ok := e.windows[windowStart]
	var positions []*types.Position
	if ok {
		for _, p := range ws.positions {
			if p.Status == types.PositionOpen || p.Status == types.PositionPartiallyOpen {
				positions = append(positions, p)
			}
		}
	}
	e.mu.Unlock()

	fpCell := e.matrixRef.Load().FirstPassageCell(timeBucket, deltaBucket)

	for _, pos := range positions {
		token := ref.UpToken
		if pos.Direction == types.Down {
			token = ref.DownToken
		}
		book, err := e.cfg.Market.GetBook(ctx, token)
		if err != nil {
			continue
		}
		entryPrice := pos.BuyLeg.FilledPrice
		if entryPrice.IsZero() {
			continue
		}
		profitPct, _ := book.BestBid.Sub(entryPrice).Div(entryPrice).Float64()

		clearedThreshold := e.cfg.SellProfitThreshold > 0 && profitPct >= e.cfg.SellProfitThreshold
		continuationFading := e.cfg.SellStrategy == "exit_ev" && profitPct > 0 &&
			fpCell.N() > 0 && fpCell.PContinue < e.cfg.ExitContinuationThreshold

		if !clearedThreshold && !continuationFading {
			continue
		}

		if err := e.cfg.Exec.SubmitSell(ctx, pos, book.BestBid); err != nil {
			e.cfg.Logger.Warn("submit-sell-failed", zap.String("position-id", pos.PositionID), zap.Error(err))
			continue
		}
		if e.cfg.Storage != nil {
			_ = e.cfg.Storage.SavePosition(ctx, pos)
		}
	}
}

// settleExpiredWindows closes out any still-open positions whose window has
// passed its expiry, using the last observed spot price as the settlement
// close price (spec §4.G "At window expiry ... payout 1.00 if direction ==
// outcome else 0.00").
func (e *Engine) settleExpiredWindows(ctx context.Context, now time.Time) {
	e.mu.Lock()
	var expired []time.Time
	for ws := range e.windows {
		if now.Before(ws.Add(types.WindowDuration)) {
			continue
		}
		expired = append(expired, ws)
	}
	lastSpot := e.lastSpot
	e.mu.Unlock()

	for _, windowStart := range expired {
		e.mu.Lock()
		ws := e.windows[windowStart]
		delete(e.windows, windowStart)
		e.mu.Unlock()

		if ws == nil || lastSpot.Price.IsZero() {
			continue
		}
		outcome := types.ClassifyOutcome(ws.openPrice, lastSpot.Price)
		for _, pos := range ws.positions {
			if pos.Status != types.PositionOpen && pos.Status != types.PositionPartiallyOpen {
				continue
			}
			e.cfg.Exec.SettleAtExpiry(pos, outcome)
			e.cfg.Risk.RecordFill(pos.RealizedPnL, now)
			e.cfg.Risk.RecordPositionClosed()
			if e.cfg.Storage != nil {
				_ = e.cfg.Storage.SavePosition(ctx, pos)
			}
		}
	}
}
