// Package execution implements the Execution State Machine (spec §4.H): the
// per-position lifecycle from PENDING_BUY through OPEN to CLOSED or the sink
// states FAILED_BUY and PARTIALLY_CLOSED (a sell moves a position straight
// to CLOSED or PARTIALLY_CLOSED; PENDING_SELL is not used), with idempotent
// submission, partial-fill handling, and retry-with-backoff.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/internal/collaborators"
	"github.com/mselser95/btc15m-maker/pkg/boterrors"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

// Config configures a Manager.
type Config struct {
	Market      collaborators.PredictionMarket
	Logger      *zap.Logger
	Backoff     BackoffConfig
	SlippageBps decimal.Decimal // default 50 = 0.50%
	FillTracker FillTrackerConfig
}

// Manager owns the in-flight Position/Execution lifecycle. Positions table is
// the only concurrently-written resource (spec §5); Manager serializes writes
// to a given position_id via its internal map's mutex, matching the spec's
// "no two workers write the same position_id" guarantee.
type Manager struct {
	cfg Config

	mu    sync.Mutex
	seen  map[string]*types.Position // client id (position_id / position_id-sell) -> position
}

// NewManager builds a Manager. Zero-value Backoff/FillTracker fall back to
// the package defaults.
func NewManager(cfg Config) *Manager {
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.FillTracker == (FillTrackerConfig{}) {
		cfg.FillTracker = DefaultFillTrackerConfig
	}
	if cfg.SlippageBps.IsZero() {
		cfg.SlippageBps = decimal.NewFromInt(50)
	}
	return &Manager{cfg: cfg, seen: make(map[string]*types.Position)}
}

func slippageAdjust(price, bps decimal.Decimal, widenUp bool) decimal.Decimal {
	factor := bps.Div(decimal.NewFromInt(10000))
	if widenUp {
		return price.Mul(decimal.NewFromInt(1).Add(factor))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(factor))
}

// SubmitBuy opens a new position from a BUY intent. Idempotent: a duplicate
// call with the same intent.PositionID returns the already-tracked Position
// without placing a second order (spec §4.H idempotency).
func (m *Manager) SubmitBuy(ctx context.Context, intent types.Intent) (*types.Position, error) {
	start := time.Now()
	defer func() { ExecutionDurationSeconds.WithLabelValues("buy").Observe(time.Since(start).Seconds()) }()

	clientID := intent.PositionID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	m.mu.Lock()
	if existing, ok := m.seen[clientID]; ok {
		m.mu.Unlock()
		return existing, nil
	}

	now := time.Now()
	buyExec := &types.Execution{
		Side:            types.Buy,
		OrderType:       types.FAK,
		RequestedPrice:  intent.Price,
		RequestedAmount: intent.USDC,
		Status:          types.ExecPending,
		Context:         intent.Context,
		ClientID:        clientID,
		SubmittedAt:     now,
	}
	position := &types.Position{
		PositionID:  clientID,
		WindowStart: intent.WindowStart,
		Direction:   intent.Direction,
		BuyLeg:      buyExec,
		Status:      types.PositionPendingBuy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.seen[clientID] = position
	m.mu.Unlock()

	limitPrice := slippageAdjust(intent.Price, m.cfg.SlippageBps, true)
	req := types.OrderRequest{
		Token:     intent.Token,
		Side:      types.Buy,
		Price:     limitPrice,
		Size:      intent.USDC,
		OrderType: types.FAK,
		ClientID:  clientID,
	}

	var ack types.OrderAck
	err := withRetry(ctx, m.cfg.Backoff, m.cfg.Logger, "buy", func() error {
		var placeErr error
		ack, placeErr = m.cfg.Market.PlaceOrder(ctx, req)
		return placeErr
	})

	if err != nil {
		m.failBuy(position, buyExec, err)
		return position, err
	}

	buyExec.OrderID = ack.OrderID
	if ack.OrderID != "" {
		ack, _ = VerifyFill(ctx, m.cfg.Market, m.cfg.Logger, ack.OrderID, intent.USDC, m.cfg.FillTracker)
	}

	m.applyBuyFill(position, buyExec, ack, intent)
	return position, nil
}

func (m *Manager) failBuy(position *types.Position, exec *types.Execution, err error) {
	exec.Status = types.ExecFailed
	exec.ErrorMessage = err.Error()
	exec.ResolvedAt = time.Now()
	position.Status = types.PositionFailedBuy
	position.UpdatedAt = time.Now()

	ExecutionFailuresTotal.Inc()
	PositionsClosedTotal.WithLabelValues(string(types.PositionFailedBuy)).Inc()

	level := m.cfg.Logger.Error
	if boterrors.IsTransient(err) {
		level = m.cfg.Logger.Warn
	}
	level("buy-failed",
		zap.String("position-id", position.PositionID),
		zap.Error(err))
}

func (m *Manager) applyBuyFill(position *types.Position, exec *types.Execution, ack types.OrderAck, intent types.Intent) {
	exec.ResolvedAt = time.Now()
	exec.FilledPrice = ack.FilledPrice
	exec.FilledAmount = ack.FilledSize

	if ack.FilledPrice.IsPositive() {
		exec.FilledShares = ack.FilledSize.Div(ack.FilledPrice)
	}

	switch {
	case ack.FilledSize.IsZero():
		exec.Status = types.ExecCancelled
		position.Status = types.PositionFailedBuy
		PositionsClosedTotal.WithLabelValues(string(types.PositionFailedBuy)).Inc()
	case ack.FilledSize.LessThan(intent.USDC):
		exec.Status = types.ExecPartial
		position.Status = types.PositionPartiallyOpen
		PartialFillsTotal.Inc()
		PositionsOpenedTotal.WithLabelValues(string(intent.Direction)).Inc()
	default:
		exec.Status = types.ExecFilled
		position.Status = types.PositionOpen
		PositionsOpenedTotal.WithLabelValues(string(intent.Direction)).Inc()
	}
	position.UpdatedAt = time.Now()

	m.cfg.Logger.Info("buy-resolved",
		zap.String("position-id", position.PositionID),
		zap.String("status", string(position.Status)),
		zap.String("filled-shares", exec.FilledShares.String()))
}

// SubmitSell closes all or part of an open position. Idempotent under
// position.SellClientID() the same way SubmitBuy is.
func (m *Manager) SubmitSell(ctx context.Context, position *types.Position, sellPrice decimal.Decimal) error {
	start := time.Now()
	defer func() { ExecutionDurationSeconds.WithLabelValues("sell").Observe(time.Since(start).Seconds()) }()

	clientID := position.SellClientID()

	m.mu.Lock()
	if _, ok := m.seen[clientID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.seen[clientID] = position
	m.mu.Unlock()

	shares := position.NetShares()
	sellExec := &types.Execution{
		Side:            types.Sell,
		OrderType:       types.FAK,
		RequestedPrice:  sellPrice,
		RequestedAmount: shares,
		Status:          types.ExecPending,
		ClientID:        clientID,
		SubmittedAt:     time.Now(),
	}

	limitPrice := slippageAdjust(sellPrice, m.cfg.SlippageBps, false)
	req := types.OrderRequest{
		Side:      types.Sell,
		Price:     limitPrice,
		Size:      shares,
		OrderType: types.FAK,
		ClientID:  clientID,
	}

	var ack types.OrderAck
	err := withRetry(ctx, m.cfg.Backoff, m.cfg.Logger, "sell", func() error {
		var placeErr error
		ack, placeErr = m.cfg.Market.PlaceOrder(ctx, req)
		return placeErr
	})

	position.SellLeg = sellExec
	position.UpdatedAt = time.Now()

	if err != nil {
		sellExec.Status = types.ExecFailed
		sellExec.ErrorMessage = err.Error()
		sellExec.ResolvedAt = time.Now()
		return fmt.Errorf("submit sell for %s: %w", position.PositionID, err)
	}

	sellExec.OrderID = ack.OrderID
	if ack.OrderID != "" {
		ack, _ = VerifyFill(ctx, m.cfg.Market, m.cfg.Logger, ack.OrderID, shares, m.cfg.FillTracker)
	}

	sellExec.FilledPrice = ack.FilledPrice
	sellExec.FilledAmount = ack.FilledSize
	sellExec.FilledShares = ack.FilledSize
	sellExec.ResolvedAt = time.Now()

	if ack.FilledSize.GreaterThanOrEqual(shares) {
		sellExec.Status = types.ExecFilled
		position.Status = types.PositionClosed
	} else if ack.FilledSize.IsPositive() {
		sellExec.Status = types.ExecPartial
		position.Status = types.PositionPartiallyClosed
		PartialFillsTotal.Inc()
	} else {
		sellExec.Status = types.ExecCancelled
	}

	PositionsClosedTotal.WithLabelValues(string(position.Status)).Inc()
	m.cfg.Logger.Info("sell-resolved",
		zap.String("position-id", position.PositionID),
		zap.String("status", string(position.Status)))

	return nil
}

// SettleAtExpiry closes a still-OPEN position at window end: payout is 1.00
// per share if direction matches the window outcome, 0.00 otherwise (spec
// §4.G "At window expiry").
func (m *Manager) SettleAtExpiry(position *types.Position, outcome types.Outcome) {
	shares := position.NetShares()
	payout := decimal.Zero
	if position.Direction == outcome {
		payout = decimal.NewFromInt(1)
	}

	var avgBuyPrice decimal.Decimal
	if position.BuyLeg != nil {
		avgBuyPrice = position.BuyLeg.FilledPrice
	}

	position.RealizedPnL = payout.Sub(avgBuyPrice).Mul(shares)
	position.Status = types.PositionSettled
	position.UpdatedAt = time.Now()

	PositionsClosedTotal.WithLabelValues(string(types.PositionSettled)).Inc()
	m.cfg.Logger.Info("position-settled",
		zap.String("position-id", position.PositionID),
		zap.String("outcome", string(outcome)),
		zap.String("realized-pnl", position.RealizedPnL.String()))
}

// Reconcile looks up a position's order by id against the collaborator, for
// use after a restart (spec §5 shutdown/reconcile policy).
func (m *Manager) Reconcile(ctx context.Context, orderID string) (types.OrderAck, error) {
	return m.cfg.Market.GetOrder(ctx, orderID)
}
