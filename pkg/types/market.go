package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is a single second of BTC/USD OHLC, the Matrix Builder's raw input.
type Candle struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
}

// SpotQuote is the latest BTC/USD spot price, per the abstract spot-price
// collaborator of spec §6.
type SpotQuote struct {
	Price     decimal.Decimal
	Timestamp time.Time
}

// Age reports how stale this quote is relative to now.
func (q SpotQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.Timestamp)
}

// BookQuote is the best bid/ask and resting size for one direction's token,
// per the abstract prediction-market collaborator of spec §6.
type BookQuote struct {
	Direction    Outcome
	BestBid      decimal.Decimal
	BestBidSize  decimal.Decimal
	BestAsk      decimal.Decimal
	BestAskSize  decimal.Decimal
	Timestamp    time.Time
}

func (q BookQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.Timestamp)
}

// MarketRef identifies the exchange-side market and tokens for a window.
type MarketRef struct {
	MarketID    string
	ConditionID string
	UpToken     string
	DownToken   string
}

// OrderRequest is what Execution submits to the prediction-market collaborator.
type OrderRequest struct {
	Token     string
	Side      Side
	Price     decimal.Decimal
	Size      decimal.Decimal
	OrderType OrderType
	ClientID  string
	GoodTill  time.Time // only meaningful for GTD
}

// OrderAck is the collaborator's synchronous response to place_order.
type OrderAck struct {
	OrderID      string
	Status       string
	FilledPrice  decimal.Decimal
	FilledSize   decimal.Decimal
}
