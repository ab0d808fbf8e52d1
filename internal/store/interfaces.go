package store

import (
	"context"
	"time"

	"tillbridge-pos-agent/internal/model"
)

// QueueStore is durable storage for the offline operation queue.
// This abstraction allows swapping between SQLite (default, terminal-local),
// Redis or MySQL (shared LAN deployments) and memory (tests) without changing
// sync logic.
//
// Implementations must preserve insertion order in List and treat corrupted
// persisted records as absent rather than failing the whole read — a broken
// row must never brick the register.
type QueueStore interface {
	// Append persists a new operation at the tail of the queue.
	Append(ctx context.Context, op *model.QueuedOperation) error

	// List returns all operations in insertion order.
	List(ctx context.Context) ([]model.QueuedOperation, error)

	// ListByState returns operations with the given state, in insertion order.
	ListByState(ctx context.Context, state model.OperationState) ([]model.QueuedOperation, error)

	// Update overwrites the stored operation with the same ID.
	Update(ctx context.Context, op *model.QueuedOperation) error

	// Remove deletes one operation by ID. Removing an unknown ID is not an error.
	Remove(ctx context.Context, id string) error

	// RemoveByState deletes all operations with the given state and returns
	// how many were removed.
	RemoveByState(ctx context.Context, state model.OperationState) (int64, error)

	// Clear deletes every operation.
	Clear(ctx context.Context) error

	// Close closes the underlying storage.
	Close() error
}

// ProductCacheStore is durable storage for the local product mirror,
// partitioned per store (tenant).
type ProductCacheStore interface {
	// Replace swaps the entire snapshot for one store atomically. A refresh is
	// all-or-nothing; readers never observe a mix of old and new records.
	Replace(ctx context.Context, storeID string, products []model.CachedProduct, fetchedAt time.Time) error

	// Products returns the current snapshot for a store; empty if never populated.
	Products(ctx context.Context, storeID string) ([]model.CachedProduct, error)

	// Product returns one cached record, or ErrNotFound.
	Product(ctx context.Context, storeID, productID string) (*model.CachedProduct, error)

	// UpdateProduct overwrites one cached record in place.
	UpdateProduct(ctx context.Context, storeID string, p *model.CachedProduct) error

	// Meta returns the refresh metadata for a store, or nil if never populated.
	Meta(ctx context.Context, storeID string) (*model.CacheMeta, error)

	// Clear drops the snapshot and metadata for one store.
	Clear(ctx context.Context, storeID string) error

	// Close closes the underlying storage.
	Close() error
}

// Common store errors
type StoreError string

func (e StoreError) Error() string { return string(e) }

const (
	// ErrNotFound indicates the record does not exist in the store.
	ErrNotFound StoreError = "record not found"
)
