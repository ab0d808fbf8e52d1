package service

import (
	"context"
	"testing"
	"time"

	"tillbridge-pos-agent/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncScheduler_RunNowDrainsAndRefreshes(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	deliverer := &fakeDeliverer{}
	queue, _ := newTestQueueManager(t, deliverer, clock)
	queue.online.Store(false)
	_, err := queue.Add(ctx, saleDraft(t, "sale-1"))
	require.NoError(t, err)
	queue.online.Store(true)

	lister := &fakeLister{pages: [][]model.CachedProduct{
		{testProduct("p1", "Rice 5kg", 10)},
	}}
	catalog, _ := newTestCatalogManager(lister, clock)

	s := NewSyncScheduler(queue, catalog, "s1", time.Minute)
	s.RunNow(ctx)

	assert.Equal(t, 1, deliverer.callCount())
	assert.Equal(t, 0, queue.PendingCount(ctx))
	assert.True(t, catalog.IsCacheValid(ctx, "s1"), "stale cache must be refreshed on the pass")
}

func TestSyncScheduler_ValidCacheIsNotRefetched(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	queue, _ := newTestQueueManager(t, &fakeDeliverer{}, clock)
	lister := &fakeLister{pages: [][]model.CachedProduct{
		{testProduct("p1", "Rice 5kg", 10)},
	}}
	catalog, _ := newTestCatalogManager(lister, clock)
	require.NoError(t, catalog.CacheProducts(ctx, "s1", []model.CachedProduct{
		testProduct("p1", "Rice 5kg", 10),
	}))

	s := NewSyncScheduler(queue, catalog, "s1", time.Minute)
	s.RunNow(ctx)

	lister.mu.Lock()
	calls := lister.calls
	lister.mu.Unlock()
	assert.Zero(t, calls, "a valid cache must not trigger a backend walk")
}

func TestSyncScheduler_OfflinePassSkipsRefresh(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	queue, _ := newTestQueueManager(t, &fakeDeliverer{}, clock)
	queue.SetOnline(false)

	lister := &fakeLister{}
	catalog, _ := newTestCatalogManager(lister, clock)

	s := NewSyncScheduler(queue, catalog, "s1", time.Minute)
	s.RunNow(ctx)

	lister.mu.Lock()
	calls := lister.calls
	lister.mu.Unlock()
	assert.Zero(t, calls)
}
