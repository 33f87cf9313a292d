package execution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/pkg/boterrors"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

type fakeMarket struct {
	placeOrderCalls int
	placeErr        error
	ack             types.OrderAck
	getOrderAck     types.OrderAck
	getOrderErr     error
}

func (f *fakeMarket) GetMarketByWindow(ctx context.Context, windowStart time.Time) (types.MarketRef, error) {
	return types.MarketRef{}, nil
}

func (f *fakeMarket) GetBook(ctx context.Context, token string) (types.BookQuote, error) {
	return types.BookQuote{}, nil
}

func (f *fakeMarket) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderAck, error) {
	f.placeOrderCalls++
	if f.placeErr != nil {
		return types.OrderAck{}, f.placeErr
	}
	return f.ack, nil
}

func (f *fakeMarket) CancelOrder(ctx context.Context, orderID string) error { return nil }

func (f *fakeMarket) GetOrder(ctx context.Context, orderID string) (types.OrderAck, error) {
	return f.getOrderAck, f.getOrderErr
}

func testIntent(positionID string) types.Intent {
	return types.Intent{
		Kind:        types.IntentBuy,
		WindowStart: time.Now(),
		Direction:   types.Up,
		Token:       "up-token",
		Price:       decimal.NewFromFloat(0.5),
		USDC:        decimal.NewFromInt(10),
		PositionID:  positionID,
	}
}

func TestSubmitBuyFullyFilled(t *testing.T) {
	market := &fakeMarket{
		ack: types.OrderAck{OrderID: "order-1", Status: "FILLED", FilledPrice: decimal.NewFromFloat(0.5), FilledSize: decimal.NewFromInt(10)},
	}
	market.getOrderAck = market.ack

	mgr := NewManager(Config{Market: market, Logger: zap.NewNop()})
	pos, err := mgr.SubmitBuy(context.Background(), testIntent("pos-1"))
	require.NoError(t, err)
	assert.Equal(t, types.PositionOpen, pos.Status)
	assert.Equal(t, types.ExecFilled, pos.BuyLeg.Status)
	assert.True(t, pos.BuyLeg.FilledShares.Equal(decimal.NewFromInt(20)))
}

func TestSubmitBuyIdempotentDuplicateDoesNotResubmit(t *testing.T) {
	market := &fakeMarket{
		ack: types.OrderAck{OrderID: "order-1", FilledPrice: decimal.NewFromFloat(0.5), FilledSize: decimal.NewFromInt(10)},
	}
	market.getOrderAck = market.ack

	mgr := NewManager(Config{Market: market, Logger: zap.NewNop()})
	intent := testIntent("pos-dup")

	_, err := mgr.SubmitBuy(context.Background(), intent)
	require.NoError(t, err)
	_, err = mgr.SubmitBuy(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, 1, market.placeOrderCalls)
}

func TestSubmitBuyPartialFill(t *testing.T) {
	market := &fakeMarket{
		ack: types.OrderAck{OrderID: "order-2", FilledPrice: decimal.NewFromFloat(0.5), FilledSize: decimal.NewFromInt(4)},
	}
	market.getOrderAck = market.ack

	mgr := NewManager(Config{Market: market, Logger: zap.NewNop()})
	pos, err := mgr.SubmitBuy(context.Background(), testIntent("pos-2"))
	require.NoError(t, err)
	assert.Equal(t, types.PositionPartiallyOpen, pos.Status)
	assert.Equal(t, types.ExecPartial, pos.BuyLeg.Status)
}

func TestSubmitBuyZeroFillFailsPosition(t *testing.T) {
	market := &fakeMarket{
		ack: types.OrderAck{OrderID: "order-3", FilledSize: decimal.Zero},
	}
	market.getOrderAck = market.ack

	mgr := NewManager(Config{Market: market, Logger: zap.NewNop()})
	pos, err := mgr.SubmitBuy(context.Background(), testIntent("pos-3"))
	require.NoError(t, err)
	assert.Equal(t, types.PositionFailedBuy, pos.Status)
}

func TestSubmitBuyPermanentErrorDoesNotRetry(t *testing.T) {
	market := &fakeMarket{placeErr: fmt.Errorf("auth failed: %w", boterrors.Permanent)}

	mgr := NewManager(Config{Market: market, Logger: zap.NewNop()})
	pos, err := mgr.SubmitBuy(context.Background(), testIntent("pos-4"))
	require.Error(t, err)
	assert.Equal(t, types.PositionFailedBuy, pos.Status)
	assert.Equal(t, 1, market.placeOrderCalls)
}

func TestSubmitBuyTransientErrorRetriesThenFails(t *testing.T) {
	market := &fakeMarket{placeErr: fmt.Errorf("timeout: %w", boterrors.Transient)}
	backoff := BackoffConfig{Base: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2, MaxRetries: 2}

	mgr := NewManager(Config{Market: market, Logger: zap.NewNop(), Backoff: backoff})
	_, err := mgr.SubmitBuy(context.Background(), testIntent("pos-5"))
	require.Error(t, err)
	assert.Equal(t, 3, market.placeOrderCalls) // initial + 2 retries
}

func TestSettleAtExpiryWinningDirection(t *testing.T) {
	market := &fakeMarket{}
	mgr := NewManager(Config{Market: market, Logger: zap.NewNop()})

	pos := &types.Position{
		PositionID: "pos-6",
		Direction:  types.Up,
		BuyLeg: &types.Execution{
			FilledPrice:  decimal.NewFromFloat(0.5),
			FilledAmount: decimal.NewFromInt(10),
			FilledShares: decimal.NewFromInt(20),
		},
	}
	mgr.SettleAtExpiry(pos, types.Up)

	assert.Equal(t, types.PositionSettled, pos.Status)
	assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(10))) // (1 - 0.5) * 20
}

func TestSettleAtExpiryLosingDirection(t *testing.T) {
	market := &fakeMarket{}
	mgr := NewManager(Config{Market: market, Logger: zap.NewNop()})

	pos := &types.Position{
		PositionID: "pos-7",
		Direction:  types.Up,
		BuyLeg: &types.Execution{
			FilledPrice:  decimal.NewFromFloat(0.5),
			FilledShares: decimal.NewFromInt(20),
		},
	}
	mgr.SettleAtExpiry(pos, types.Down)

	assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(-10))) // (0 - 0.5) * 20
}
