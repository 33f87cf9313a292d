// Package boterrors classifies external-call failures into the taxonomy of
// spec §7 (Transient, Permanent, DataStaleness, Invariant) so callers can
// branch with errors.Is/errors.As instead of matching strings.
package boterrors

import "errors"

// Sentinel classes. Wrap a concrete error with fmt.Errorf("...: %w", Class)
// so errors.Is(err, boterrors.Transient) etc. works across package
// boundaries, the way GoPolymarket-polymarket-go-sdk's pkg/clob/cloberrors
// and the teacher's pkg/types/errors.go classify failures.
var (
	// Transient covers network timeouts and 5xx responses: safe to retry or
	// skip the current tick (spec §7).
	Transient = errors.New("transient external error")

	// Permanent covers auth failures, insufficient funds, unknown markets:
	// fail fast, mark the execution FAILED, keep the bot running (spec §7).
	Permanent = errors.New("permanent external error")

	// DataStaleness covers a spot or book quote older than its freshness
	// bound: abort the tick, log a warning, continue (spec §7).
	DataStaleness = errors.New("stale market data")

	// Invariant covers a violated domain invariant (e.g. p_up + p_down != 1):
	// fatal, the process must exit (spec §7).
	Invariant = errors.New("invariant violation")
)

// IsTransient reports whether err (or any error it wraps) is Transient.
func IsTransient(err error) bool { return errors.Is(err, Transient) }

// IsPermanent reports whether err (or any error it wraps) is Permanent.
func IsPermanent(err error) bool { return errors.Is(err, Permanent) }

// IsDataStaleness reports whether err (or any error it wraps) is DataStaleness.
func IsDataStaleness(err error) bool { return errors.Is(err, DataStaleness) }

// IsInvariant reports whether err (or any error it wraps) is Invariant.
func IsInvariant(err error) bool { return errors.Is(err, Invariant) }
