package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// IntentKind distinguishes the Decision Engine's two intent shapes.
type IntentKind string

const (
	IntentBuy  IntentKind = "BUY"
	IntentSell IntentKind = "SELL"
)

// Intent is what the Decision Engine hands to the Execution State Machine at the
// end of a tick. Never carried over to the next tick (spec §5 ordering guarantee).
type Intent struct {
	Kind        IntentKind
	WindowStart time.Time
	Direction   Outcome
	Token       string // exchange token id for Direction's side, resolved by the caller
	Price       decimal.Decimal
	USDC        decimal.Decimal // BUY sizing
	Shares      decimal.Decimal // SELL sizing
	PositionID  string
	Context     DecisionContext
}

// Recommendation is the Edge Calculator's verdict for one direction (spec §4.E).
type Recommendation struct {
	ShouldBet         bool
	Direction         Outcome
	Edge              float64
	Confidence        Confidence
	OurProbability    float64
	MarketProbability float64
	EVPerUnit         float64
}
