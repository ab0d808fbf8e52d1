package store

import (
	"context"
	"sync"

	"tillbridge-pos-agent/internal/model"
)

// MemoryQueueStore is an in-memory implementation of QueueStore.
// Use this for development/testing; nothing survives a restart.
type MemoryQueueStore struct {
	mu  sync.RWMutex
	ops []model.QueuedOperation
}

// NewMemoryQueueStore creates a new in-memory queue store.
func NewMemoryQueueStore() *MemoryQueueStore {
	return &MemoryQueueStore{}
}

// Append persists a new operation at the tail of the queue.
func (s *MemoryQueueStore) Append(ctx context.Context, op *model.QueuedOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops = append(s.ops, *op)
	return nil
}

// List returns all operations in insertion order.
func (s *MemoryQueueStore) List(ctx context.Context) ([]model.QueuedOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.QueuedOperation, len(s.ops))
	copy(out, s.ops)
	return out, nil
}

// ListByState returns operations with the given state, in insertion order.
func (s *MemoryQueueStore) ListByState(ctx context.Context, state model.OperationState) ([]model.QueuedOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.QueuedOperation
	for _, op := range s.ops {
		if op.State == state {
			out = append(out, op)
		}
	}
	return out, nil
}

// Update overwrites the stored operation with the same ID.
func (s *MemoryQueueStore) Update(ctx context.Context, op *model.QueuedOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.ops {
		if s.ops[i].ID == op.ID {
			s.ops[i] = *op
			return nil
		}
	}
	return ErrNotFound
}

// Remove deletes one operation by ID.
func (s *MemoryQueueStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.ops {
		if s.ops[i].ID == id {
			s.ops = append(s.ops[:i], s.ops[i+1:]...)
			return nil
		}
	}
	return nil
}

// RemoveByState deletes all operations with the given state.
func (s *MemoryQueueStore) RemoveByState(ctx context.Context, state model.OperationState) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []model.QueuedOperation
	var removed int64
	for _, op := range s.ops {
		if op.State == state {
			removed++
			continue
		}
		kept = append(kept, op)
	}
	s.ops = kept
	return removed, nil
}

// Clear deletes every operation.
func (s *MemoryQueueStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops = nil
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryQueueStore) Close() error {
	return nil
}

// Ensure MemoryQueueStore implements QueueStore
var _ QueueStore = (*MemoryQueueStore)(nil)
