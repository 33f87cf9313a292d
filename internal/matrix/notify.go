package matrix

import (
	"context"

	"go.uber.org/zap"
)

// SnapshotPublisher is the narrow slice of spotcache.Cache NotifyingStore
// needs, kept as an interface so tests can substitute a fake instead of a
// live Redis connection.
type SnapshotPublisher interface {
	PublishSnapshotReplaced(ctx context.Context, snapshotID int64) error
}

// NotifyingStore decorates a Store with a publish after every successful
// Save, so a Decision Engine subscribed via
// spotcache.SubscribeSnapshotReplaced picks up the new snapshot without
// polling the Store on its own schedule (spec §4.D hot-swap, §8 scenario 6).
type NotifyingStore struct {
	Store
	cache  SnapshotPublisher
	logger *zap.Logger
}

// NewNotifyingStore wraps store so every Save also publishes to cache.
func NewNotifyingStore(store Store, cache SnapshotPublisher, logger *zap.Logger) *NotifyingStore {
	return &NotifyingStore{Store: store, cache: cache, logger: logger}
}

// Save delegates to the wrapped Store, then publishes the new snapshot id.
// A publish failure is logged but never fails the save itself — the
// snapshot is already durable, and a missed notification only delays
// hot-reload until the next poll, not a correctness issue.
func (n *NotifyingStore) Save(ctx context.Context, m *Matrix) (int64, error) {
	id, err := n.Store.Save(ctx, m)
	if err != nil {
		return 0, err
	}

	if err := n.cache.PublishSnapshotReplaced(ctx, id); err != nil {
		n.logger.Warn("matrix-snapshot-replaced-publish-failed", zap.Error(err), zap.Int64("snapshot-id", id))
	}

	return id, nil
}
