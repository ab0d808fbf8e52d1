package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tillbridge-pos-agent/internal/model"
	"tillbridge-pos-agent/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOp(id string, state model.OperationState) *model.QueuedOperation {
	return &model.QueuedOperation{
		ID:         id,
		Kind:       model.OpCreateSale,
		Endpoint:   "/api/stores/s1/sales",
		Method:     "POST",
		Payload:    []byte(`{"id":"` + id + `"}`),
		EnqueuedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		State:      state,
	}
}

func TestMemoryQueueStore_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryQueueStore()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, newOp(fmt.Sprintf("op-%d", i), model.OpPending)))
	}

	ops, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 5)
	for i, op := range ops {
		assert.Equal(t, fmt.Sprintf("op-%d", i), op.ID)
	}
}

func TestMemoryQueueStore_ListByState(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryQueueStore()

	require.NoError(t, s.Append(ctx, newOp("a", model.OpPending)))
	require.NoError(t, s.Append(ctx, newOp("b", model.OpFailed)))
	require.NoError(t, s.Append(ctx, newOp("c", model.OpPending)))

	pending, err := s.ListByState(ctx, model.OpPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)
	assert.Equal(t, "c", pending[1].ID)

	failed, err := s.ListByState(ctx, model.OpFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].ID)
}

func TestMemoryQueueStore_Update(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryQueueStore()

	require.NoError(t, s.Append(ctx, newOp("a", model.OpPending)))

	op := newOp("a", model.OpFailed)
	op.Attempts = 5
	op.LastError = "HTTP 500: Internal Server Error"
	require.NoError(t, s.Update(ctx, op))

	ops, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, model.OpFailed, ops[0].State)
	assert.Equal(t, 5, ops[0].Attempts)
	assert.Equal(t, "HTTP 500: Internal Server Error", ops[0].LastError)

	err = s.Update(ctx, newOp("ghost", model.OpPending))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryQueueStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryQueueStore()

	require.NoError(t, s.Append(ctx, newOp("a", model.OpPending)))
	require.NoError(t, s.Append(ctx, newOp("b", model.OpPending)))

	require.NoError(t, s.Remove(ctx, "a"))
	require.NoError(t, s.Remove(ctx, "a")) // removing twice is a no-op

	ops, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "b", ops[0].ID)
}

func TestMemoryQueueStore_RemoveByState(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryQueueStore()

	require.NoError(t, s.Append(ctx, newOp("a", model.OpFailed)))
	require.NoError(t, s.Append(ctx, newOp("b", model.OpPending)))
	require.NoError(t, s.Append(ctx, newOp("c", model.OpFailed)))

	removed, err := s.RemoveByState(ctx, model.OpFailed)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	ops, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "b", ops[0].ID)
}

func TestMemoryQueueStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryQueueStore()

	require.NoError(t, s.Append(ctx, newOp("a", model.OpPending)))
	require.NoError(t, s.Clear(ctx))

	ops, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
}
