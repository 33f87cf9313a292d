package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// DecisionContext captures the market state at the moment an Execution was decided,
// for offline analysis (spec §3 "decision-time context").
type DecisionContext struct {
	BTCPrice        decimal.Decimal
	Delta           decimal.Decimal
	Edge            float64
	OurProbability  float64
	MarketProbability float64
	BestBid         decimal.Decimal
	BestBidSize     decimal.Decimal
	BestAsk         decimal.Decimal
	BestAskSize     decimal.Decimal
}

// Execution is one side (BUY or SELL) of a Position.
type Execution struct {
	Side             Side
	OrderType        OrderType
	RequestedPrice   decimal.Decimal
	RequestedAmount  decimal.Decimal // USDC for BUY, shares for SELL
	FilledPrice      decimal.Decimal
	FilledAmount     decimal.Decimal
	FilledShares     decimal.Decimal
	Status           ExecutionStatus
	Context          DecisionContext
	OrderID          string
	TxHash           string
	ClientID         string // idempotency key
	ErrorMessage     string
	SubmittedAt      time.Time
	ResolvedAt       time.Time
	RetryCount       int
}

// IsTerminal reports whether the execution has reached a state that won't change
// without a new submission.
func (e *Execution) IsTerminal() bool {
	switch e.Status {
	case ExecFilled, ExecCancelled, ExecFailed:
		return true
	default:
		return false
	}
}

// Position is an intended or realized bet on a window's outcome.
type Position struct {
	PositionID  string
	WindowStart time.Time
	Direction   Outcome
	BuyLeg      *Execution
	SellLeg     *Execution
	Status      PositionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RealizedPnL decimal.Decimal
}

// SellClientID derives the idempotency key for this position's SELL leg, per
// spec §4.H ("position_id + '-sell'").
func (p *Position) SellClientID() string {
	return p.PositionID + "-sell"
}

// NetShares returns shares bought minus shares sold, the residual the position
// still holds.
func (p *Position) NetShares() decimal.Decimal {
	bought := decimal.Zero
	if p.BuyLeg != nil {
		bought = p.BuyLeg.FilledShares
	}
	sold := decimal.Zero
	if p.SellLeg != nil {
		sold = p.SellLeg.FilledShares
	}
	return bought.Sub(sold)
}
