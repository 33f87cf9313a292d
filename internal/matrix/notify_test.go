package matrix

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	saveID int64
	saveErr error
	loaded  *Snapshot
}

func (f *fakeStore) Save(ctx context.Context, m *Matrix) (int64, error) {
	return f.saveID, f.saveErr
}

func (f *fakeStore) LoadActive(ctx context.Context) (*Snapshot, error) { return f.loaded, nil }
func (f *fakeStore) Close() error                                      { return nil }

type fakePublisher struct {
	published []int64
	err       error
}

func (p *fakePublisher) PublishSnapshotReplaced(ctx context.Context, id int64) error {
	p.published = append(p.published, id)
	return p.err
}

func TestNotifyingStorePublishesOnSave(t *testing.T) {
	store := &fakeStore{saveID: 42}
	pub := &fakePublisher{}
	ns := NewNotifyingStore(store, pub, zap.NewNop())

	id, err := ns.Save(context.Background(), New())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, []int64{42}, pub.published)
}

func TestNotifyingStoreSkipsPublishOnSaveError(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("disk full")}
	pub := &fakePublisher{}
	ns := NewNotifyingStore(store, pub, zap.NewNop())

	_, err := ns.Save(context.Background(), New())
	assert.Error(t, err)
	assert.Empty(t, pub.published)
}

func TestNotifyingStoreToleratesPublishFailure(t *testing.T) {
	store := &fakeStore{saveID: 7}
	pub := &fakePublisher{err: errors.New("redis down")}
	ns := NewNotifyingStore(store, pub, zap.NewNop())

	id, err := ns.Save(context.Background(), New())
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}
