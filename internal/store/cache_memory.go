package store

import (
	"context"
	"sync"
	"time"

	"tillbridge-pos-agent/internal/model"
)

// storeSnapshot holds one store's cached products and refresh metadata.
type storeSnapshot struct {
	products  []model.CachedProduct
	fetchedAt time.Time
}

// MemoryProductCacheStore is an in-memory implementation of ProductCacheStore.
// Use this for development/testing.
type MemoryProductCacheStore struct {
	mu        sync.RWMutex
	snapshots map[string]*storeSnapshot
}

// NewMemoryProductCacheStore creates a new in-memory product cache store.
func NewMemoryProductCacheStore() *MemoryProductCacheStore {
	return &MemoryProductCacheStore{
		snapshots: make(map[string]*storeSnapshot),
	}
}

// Replace swaps the entire snapshot for one store atomically.
func (s *MemoryProductCacheStore) Replace(ctx context.Context, storeID string, products []model.CachedProduct, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := &storeSnapshot{
		products:  make([]model.CachedProduct, len(products)),
		fetchedAt: fetchedAt,
	}
	copy(snapshot.products, products)
	for i := range snapshot.products {
		snapshot.products[i].StoreID = storeID
		snapshot.products[i].CachedAt = fetchedAt
	}
	s.snapshots[storeID] = snapshot
	return nil
}

// Products returns the current snapshot for a store.
func (s *MemoryProductCacheStore) Products(ctx context.Context, storeID string) ([]model.CachedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[storeID]
	if !ok {
		return nil, nil
	}

	out := make([]model.CachedProduct, len(snapshot.products))
	copy(out, snapshot.products)
	return out, nil
}

// Product returns one cached record, or ErrNotFound.
func (s *MemoryProductCacheStore) Product(ctx context.Context, storeID, productID string) (*model.CachedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[storeID]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range snapshot.products {
		if snapshot.products[i].ID == productID {
			p := snapshot.products[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateProduct overwrites one cached record in place.
func (s *MemoryProductCacheStore) UpdateProduct(ctx context.Context, storeID string, p *model.CachedProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.snapshots[storeID]
	if !ok {
		return ErrNotFound
	}
	for i := range snapshot.products {
		if snapshot.products[i].ID == p.ID {
			snapshot.products[i] = *p
			snapshot.products[i].StoreID = storeID
			return nil
		}
	}
	return ErrNotFound
}

// Meta returns the refresh metadata for a store, or nil if never populated.
func (s *MemoryProductCacheStore) Meta(ctx context.Context, storeID string) (*model.CacheMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[storeID]
	if !ok {
		return nil, nil
	}
	return &model.CacheMeta{StoreID: storeID, FetchedAt: snapshot.fetchedAt}, nil
}

// Clear drops the snapshot and metadata for one store.
func (s *MemoryProductCacheStore) Clear(ctx context.Context, storeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, storeID)
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryProductCacheStore) Close() error {
	return nil
}

// Ensure MemoryProductCacheStore implements ProductCacheStore
var _ ProductCacheStore = (*MemoryProductCacheStore)(nil)
