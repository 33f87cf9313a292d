package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// WindowDuration is the fixed length of a prediction-market instrument window.
const WindowDuration = 15 * time.Minute

// Window is the 15-minute BTC/USD binary-option instrument, aligned to wall-clock
// quarter-hour boundaries.
type Window struct {
	Start        time.Time
	OpenPrice    decimal.Decimal
	CurrentPrice decimal.Decimal
	Outcome      *Outcome // nil until expiry
}

// AlignWindowStart floors t to the most recent :00/:15/:30/:45 UTC boundary.
func AlignWindowStart(t time.Time) time.Time {
	t = t.UTC()
	minute := (t.Minute() / 15) * 15
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, time.UTC)
}

// SecondsIntoWindow returns how many seconds t is past the window's start.
// Clips to [0, 900) — callers outside that range should treat the window as expired.
func SecondsIntoWindow(start, t time.Time) int {
	d := int(t.Sub(start).Seconds())
	if d < 0 {
		return 0
	}
	if d >= 900 {
		return 899
	}
	return d
}

// SecondsRemaining returns 900 minus the whole seconds elapsed since start,
// floored at 0. The elapsed time is not clipped the way SecondsIntoWindow
// clips it.
func SecondsRemaining(start, t time.Time) int {
	elapsed := int(t.Sub(start).Seconds())
	remaining := 900 - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ClassifyOutcome returns UP when close > open and DOWN otherwise: close ==
// open is classified DOWN by fixed convention; confirm against live
// settlement rules before trading real capital.
func ClassifyOutcome(openPrice, closePrice decimal.Decimal) Outcome {
	if closePrice.GreaterThanOrEqual(openPrice) && !closePrice.Equal(openPrice) {
		return Up
	}
	return Down
}
