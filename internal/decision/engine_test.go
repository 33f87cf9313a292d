package decision

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/internal/edge"
	"github.com/mselser95/btc15m-maker/internal/execution"
	"github.com/mselser95/btc15m-maker/internal/matrix"
	"github.com/mselser95/btc15m-maker/internal/risk"
	"github.com/mselser95/btc15m-maker/internal/sizing"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

type fakeSpot struct {
	price decimal.Decimal
	ts    time.Time
}

func (f *fakeSpot) GetLatestBTCUSD(ctx context.Context) (types.SpotQuote, error) {
	return types.SpotQuote{Price: f.price, Timestamp: f.ts}, nil
}

type fakeMarket struct {
	ref        types.MarketRef
	upBook     types.BookQuote
	downBook   types.BookQuote
	placeCalls int
	placeAck   types.OrderAck
}

func (f *fakeMarket) GetMarketByWindow(ctx context.Context, windowStart time.Time) (types.MarketRef, error) {
	return f.ref, nil
}

func (f *fakeMarket) GetBook(ctx context.Context, token string) (types.BookQuote, error) {
	if token == f.ref.UpToken {
		return f.upBook, nil
	}
	return f.downBook, nil
}

func (f *fakeMarket) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderAck, error) {
	f.placeCalls++
	return f.placeAck, nil
}

func (f *fakeMarket) CancelOrder(ctx context.Context, orderID string) error { return nil }

func (f *fakeMarket) GetOrder(ctx context.Context, orderID string) (types.OrderAck, error) {
	return f.placeAck, nil
}

// strongUpMatrix builds a Matrix where every cell is a high-confidence,
// near-certain UP outcome, so any bucket the test lands on behaves the same.
func strongUpMatrix() *matrix.Matrix {
	m := matrix.New()
	for i := range m.Cells {
		m.Cells[i].CountUp = 200
		m.Cells[i].CountDown = 0
		m.Cells[i].Recompute(1, 1)
	}
	return m
}

func testEngine(market *fakeMarket, spot *fakeSpot) *Engine {
	logger := zap.NewNop()
	cfg := Config{
		TickInterval:        500 * time.Millisecond,
		MinSecondsElapsed:   0,
		MinSecondsRemaining: 0,
		MinConfidence:       types.Moderate,
		MomentumAlignment:   true,
		LiquidityMargin:     1.0,
		MaxBetsPerWindow:    1,
		Spot:                spot,
		Market:              market,
		Exec:                execution.NewManager(execution.Config{Market: market, Logger: logger}),
		EdgeCalc:            edge.NewCalculator(edge.DefaultThresholds),
		Sizer:               sizing.NewSizer(sizing.DefaultConfidenceFractions, sizing.DefaultLimits),
		Risk:                risk.NewAccounting(risk.Config{StartingBankroll: decimal.NewFromInt(1000), DailyLossLimitPct: 0.20, Logger: logger}),
		Logger:              logger,
	}
	return NewEngine(cfg, strongUpMatrix())
}

func TestTickEmitsBuyOnStrongUpEdge(t *testing.T) {
	now := time.Now().UTC()
	windowStart := types.AlignWindowStart(now)

	market := &fakeMarket{
		ref:    types.MarketRef{UpToken: "up", DownToken: "down"},
		upBook: types.BookQuote{Direction: types.Up, BestAsk: decimal.NewFromFloat(0.5), BestAskSize: decimal.NewFromInt(1000), BestBid: decimal.NewFromFloat(0.48)},
		downBook: types.BookQuote{Direction: types.Down, BestAsk: decimal.NewFromFloat(0.5), BestAskSize: decimal.NewFromInt(1000), BestBid: decimal.NewFromFloat(0.48)},
		placeAck: types.OrderAck{OrderID: "o1", Status: "FILLED", FilledPrice: decimal.NewFromFloat(0.5), FilledSize: decimal.NewFromInt(20)},
	}
	spot := &fakeSpot{price: decimal.NewFromInt(100), ts: now}

	e := testEngine(market, spot)
	// Pretend this window's open price was already observed lower, so momentum favors UP.
	e.windows[windowStart] = &windowState{openPrice: decimal.NewFromInt(50), positions: make(map[types.Outcome]*types.Position)}

	err := e.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, market.placeCalls)
}

func TestTickSkipsWhenOutsideTimingGate(t *testing.T) {
	market := &fakeMarket{ref: types.MarketRef{UpToken: "up", DownToken: "down"}}
	spot := &fakeSpot{price: decimal.NewFromInt(100), ts: time.Now().UTC()}

	e := testEngine(market, spot)
	// An impossibly high bar (more seconds than exist in a window) always
	// fails the gate regardless of where the real clock lands.
	e.cfg.MinSecondsElapsed = 10000

	err := e.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, market.placeCalls)
	assert.Equal(t, Idle, e.State())
}

func TestMomentumMisalignmentRejectsBet(t *testing.T) {
	now := time.Now().UTC()
	windowStart := types.AlignWindowStart(now)

	market := &fakeMarket{
		ref:      types.MarketRef{UpToken: "up", DownToken: "down"},
		upBook:   types.BookQuote{BestAsk: decimal.NewFromFloat(0.5), BestAskSize: decimal.NewFromInt(1000)},
		downBook: types.BookQuote{BestAsk: decimal.NewFromFloat(0.5), BestAskSize: decimal.NewFromInt(1000)},
	}
	spot := &fakeSpot{price: decimal.NewFromInt(100), ts: now}

	e := testEngine(market, spot)
	// Spot is BELOW the window's recorded open, so momentum favors DOWN even
	// though the matrix is rigged to favor UP everywhere.
	e.windows[windowStart] = &windowState{openPrice: decimal.NewFromInt(150), positions: make(map[types.Outcome]*types.Position)}

	err := e.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, market.placeCalls)
}

type fakeMatrixStore struct {
	snap *matrix.Snapshot
}

func (f *fakeMatrixStore) Save(ctx context.Context, m *matrix.Matrix) (int64, error) { return 0, nil }
func (f *fakeMatrixStore) LoadActive(ctx context.Context) (*matrix.Snapshot, error) {
	return f.snap, nil
}
func (f *fakeMatrixStore) Close() error { return nil }

func TestWatchHotReloadAppliesNewSnapshot(t *testing.T) {
	market := &fakeMarket{ref: types.MarketRef{UpToken: "up", DownToken: "down"}}
	spot := &fakeSpot{price: decimal.NewFromInt(100), ts: time.Now()}
	e := testEngine(market, spot)

	fresh := matrix.New()
	fresh.RecomputeAll(1, 1)
	store := &fakeMatrixStore{snap: &matrix.Snapshot{ID: 9, Matrix: fresh}}

	notifications := make(chan string, 1)
	notifications <- "9"
	close(notifications)

	e.WatchHotReload(context.Background(), notifications, store)

	assert.Same(t, fresh, e.matrixRef.Load())
}

func TestSettleExpiredWindowsClosesOpenPositions(t *testing.T) {
	market := &fakeMarket{ref: types.MarketRef{UpToken: "up", DownToken: "down"}}
	spot := &fakeSpot{price: decimal.NewFromInt(110)}
	e := testEngine(market, spot)

	expiredStart := time.Now().UTC().Add(-20 * time.Minute)
	pos := &types.Position{
		PositionID: "pos-1",
		Direction:  types.Up,
		Status:     types.PositionOpen,
		BuyLeg:     &types.Execution{FilledPrice: decimal.NewFromFloat(0.5), FilledShares: decimal.NewFromInt(20)},
	}
	e.windows[expiredStart] = &windowState{
		openPrice: decimal.NewFromInt(100),
		positions: map[types.Outcome]*types.Position{types.Up: pos},
	}
	e.lastSpot = types.SpotQuote{Price: decimal.NewFromInt(110), Timestamp: time.Now()}

	e.settleExpiredWindows(context.Background(), time.Now().UTC())

	assert.Equal(t, types.PositionSettled, pos.Status)
	assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(10))) // (1-0.5)*20, UP beat DOWN
	_, stillTracked := e.windows[expiredStart]
	assert.False(t, stillTracked)
}

func TestEvaluateSellSideExitEVSellsOnFadingContinuation(t *testing.T) {
	market := &fakeMarket{
		ref:      types.MarketRef{UpToken: "up", DownToken: "down"},
		upBook:   types.BookQuote{Direction: types.Up, BestBid: decimal.NewFromFloat(0.6), BestAsk: decimal.NewFromFloat(0.62)},
		downBook: types.BookQuote{Direction: types.Down, BestBid: decimal.NewFromFloat(0.4), BestAsk: decimal.NewFromFloat(0.42)},
		placeAck: types.OrderAck{OrderID: "sell-1", Status: "FILLED", FilledPrice: decimal.NewFromFloat(0.6), FilledSize: decimal.NewFromInt(20)},
	}
	spot := &fakeSpot{price: decimal.NewFromInt(100), ts: time.Now().UTC()}
	e := testEngine(market, spot)
	e.cfg.SellProfitThreshold = 0
	e.cfg.SellStrategy = "exit_ev"
	e.cfg.ExitContinuationThreshold = 0.5

	const timeBucket = 10
	const deltaBucket = 3
	m := e.matrixRef.Load()
	fp := m.FirstPassageCellAt(timeBucket, deltaBucket)
	fp.CountContinue = 5
	fp.CountReverse = 95
	fp.Recompute(1, 1)
	require.Less(t, fp.PContinue, 0.5)

	windowStart := time.Now().UTC()
	pos := &types.Position{
		PositionID: "pos-1",
		Direction:  types.Up,
		Status:     types.PositionOpen,
		BuyLeg:     &types.Execution{FilledPrice: decimal.NewFromFloat(0.5), FilledShares: decimal.NewFromInt(20)},
	}
	e.windows[windowStart] = &windowState{
		openPrice: decimal.NewFromInt(100),
		positions: map[types.Outcome]*types.Position{types.Up: pos},
	}

	e.evaluateSellSide(context.Background(), windowStart, market.ref, timeBucket, deltaBucket)

	assert.Equal(t, 1, market.placeCalls)
}

func TestEvaluateSellSideHoldStrategyIgnoresFadingContinuation(t *testing.T) {
	market := &fakeMarket{
		ref:    types.MarketRef{UpToken: "up", DownToken: "down"},
		upBook: types.BookQuote{Direction: types.Up, BestBid: decimal.NewFromFloat(0.6), BestAsk: decimal.NewFromFloat(0.62)},
	}
	spot := &fakeSpot{price: decimal.NewFromInt(100), ts: time.Now().UTC()}
	e := testEngine(market, spot)
	e.cfg.SellProfitThreshold = 0
	e.cfg.SellStrategy = "hold"

	const timeBucket = 10
	const deltaBucket = 3
	m := e.matrixRef.Load()
	fp := m.FirstPassageCellAt(timeBucket, deltaBucket)
	fp.CountContinue = 5
	fp.CountReverse = 95
	fp.Recompute(1, 1)

	windowStart := time.Now().UTC()
	pos := &types.Position{
		PositionID: "pos-1",
		Direction:  types.Up,
		Status:     types.PositionOpen,
		BuyLeg:     &types.Execution{FilledPrice: decimal.NewFromFloat(0.5), FilledShares: decimal.NewFromInt(20)},
	}
	e.windows[windowStart] = &windowState{
		openPrice: decimal.NewFromInt(100),
		positions: map[types.Outcome]*types.Position{types.Up: pos},
	}

	e.evaluateSellSide(context.Background(), windowStart, market.ref, timeBucket, deltaBucket)

	assert.Equal(t, 0, market.placeCalls)
}
