// Package storage persists Position/Execution records for offline analysis
// (spec §6 "Position persistence": one row per Execution with full decision
// context, one row per Position summary, append-only).
package storage

import (
	"context"

	"github.com/mselser95/btc15m-maker/pkg/types"
)

// Store is the interface for persisting positions and their executions.
type Store interface {
	// SavePosition upserts a Position's summary row and appends a row for
	// each of its legs (buy/sell Executions) seen so far. Writes are scoped
	// to a single position_id (spec §5 - the Positions table is the only
	// concurrently-written resource, partitioned by position_id so no lock
	// spans more than one position).
	SavePosition(ctx context.Context, p *types.Position) error

	// Close closes the storage connection.
	Close() error
}
