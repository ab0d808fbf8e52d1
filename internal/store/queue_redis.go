package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"tillbridge-pos-agent/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisQueueStore implements QueueStore on Redis, for deployments where
// several registers share one LAN cache box. Operations live in a hash keyed
// by ID; insertion order is kept in a companion list.
type RedisQueueStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisQueueConfig holds configuration for the Redis queue store.
type RedisQueueConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisQueueStore creates a Redis-backed queue store.
func NewRedisQueueStore(cfg RedisQueueConfig) (*RedisQueueStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "tillbridge:sync"
	}

	log.Printf("[RedisQueueStore] Initialized - DB:%d, prefix:%s", cfg.DB, keyPrefix)
	return &RedisQueueStore{client: client, keyPrefix: keyPrefix}, nil
}

func (s *RedisQueueStore) opsKey() string {
	return s.keyPrefix + ":ops"
}

func (s *RedisQueueStore) orderKey() string {
	return s.keyPrefix + ":order"
}

// Append persists a new operation at the tail of the queue.
func (s *RedisQueueStore) Append(ctx context.Context, op *model.QueuedOperation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.opsKey(), op.ID, data)
	pipe.RPush(ctx, s.orderKey(), op.ID)
	_, err = pipe.Exec(ctx)
	return err
}

// List returns all operations in insertion order.
func (s *RedisQueueStore) List(ctx context.Context) ([]model.QueuedOperation, error) {
	ids, err := s.client.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue order: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var ops []model.QueuedOperation
	for _, id := range ids {
		data, err := s.client.HGet(ctx, s.opsKey(), id).Bytes()
		if err == redis.Nil {
			// Orphaned order entry
			s.client.LRem(ctx, s.orderKey(), 0, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read operation %s: %w", id, err)
		}

		var op model.QueuedOperation
		if err := json.Unmarshal(data, &op); err != nil {
			// Corrupted record: drop it rather than brick the queue
			log.Printf("[RedisQueueStore] Dropping corrupted operation %s: %v", id, err)
			pipe := s.client.Pipeline()
			pipe.HDel(ctx, s.opsKey(), id)
			pipe.LRem(ctx, s.orderKey(), 0, id)
			pipe.Exec(ctx)
			continue
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// ListByState returns operations with the given state, in insertion order.
func (s *RedisQueueStore) ListByState(ctx context.Context, state model.OperationState) ([]model.QueuedOperation, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.QueuedOperation
	for _, op := range all {
		if op.State == state {
			out = append(out, op)
		}
	}
	return out, nil
}

// Update overwrites the stored operation with the same ID.
func (s *RedisQueueStore) Update(ctx context.Context, op *model.QueuedOperation) error {
	exists, err := s.client.HExists(ctx, s.opsKey(), op.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to check operation %s: %w", op.ID, err)
	}
	if !exists {
		return ErrNotFound
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}
	return s.client.HSet(ctx, s.opsKey(), op.ID, data).Err()
}

// Remove deletes one operation by ID.
func (s *RedisQueueStore) Remove(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.HDel(ctx, s.opsKey(), id)
	pipe.LRem(ctx, s.orderKey(), 0, id)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveByState deletes all operations with the given state.
func (s *RedisQueueStore) RemoveByState(ctx context.Context, state model.OperationState) (int64, error) {
	ops, err := s.ListByState(ctx, state)
	if err != nil {
		return 0, err
	}
	if len(ops) == 0 {
		return 0, nil
	}

	pipe := s.client.Pipeline()
	for _, op := range ops {
		pipe.HDel(ctx, s.opsKey(), op.ID)
		pipe.LRem(ctx, s.orderKey(), 0, op.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int64(len(ops)), nil
}

// Clear deletes every operation.
func (s *RedisQueueStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.opsKey(), s.orderKey()).Err()
}

// Close closes the Redis connection.
func (s *RedisQueueStore) Close() error {
	return s.client.Close()
}

// Ensure RedisQueueStore implements QueueStore
var _ QueueStore = (*RedisQueueStore)(nil)
