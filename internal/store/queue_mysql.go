package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"tillbridge-pos-agent/internal/model"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLQueueStore implements QueueStore on MySQL, for stores that run a
// back-office database on the LAN and want the queue visible to office
// tooling while the WAN link is down.
type MySQLQueueStore struct {
	db *sql.DB
}

// NewMySQLQueueStore creates a MySQL-backed queue store.
func NewMySQLQueueStore(dsn string) (*MySQLQueueStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLQueueTable(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MySQLQueueStore] Initialized")
	return &MySQLQueueStore{db: db}, nil
}

func createMySQLQueueTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS sync_queue (
		seq BIGINT PRIMARY KEY AUTO_INCREMENT,
		id VARCHAR(64) NOT NULL UNIQUE,
		kind VARCHAR(32) NOT NULL,
		endpoint VARCHAR(255) NOT NULL,
		method VARCHAR(8) NOT NULL,
		payload TEXT NOT NULL,
		enqueued_at DATETIME(3) NOT NULL,
		attempts INT NOT NULL DEFAULT 0,
		last_attempt_at DATETIME(3) NULL,
		state VARCHAR(16) NOT NULL,
		last_error TEXT NULL,
		INDEX idx_sync_queue_state (state)
	)`
	_, err := db.Exec(query)
	return err
}

// Append persists a new operation at the tail of the queue.
func (s *MySQLQueueStore) Append(ctx context.Context, op *model.QueuedOperation) error {
	query := `
		INSERT INTO sync_queue (id, kind, endpoint, method, payload, enqueued_at, attempts, last_attempt_at, state, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		op.ID, string(op.Kind), op.Endpoint, op.Method, string(op.Payload),
		op.EnqueuedAt, op.Attempts, nullableTime(op.LastAttemptAt), string(op.State), op.LastError)
	if err != nil {
		return fmt.Errorf("failed to append operation: %w", err)
	}
	return nil
}

// List returns all operations in insertion order.
func (s *MySQLQueueStore) List(ctx context.Context) ([]model.QueuedOperation, error) {
	return s.list(ctx, "")
}

// ListByState returns operations with the given state, in insertion order.
func (s *MySQLQueueStore) ListByState(ctx context.Context, state model.OperationState) ([]model.QueuedOperation, error) {
	return s.list(ctx, state)
}

func (s *MySQLQueueStore) list(ctx context.Context, state model.OperationState) ([]model.QueuedOperation, error) {
	query := `SELECT id, kind, endpoint, method, payload, enqueued_at, attempts, last_attempt_at, state, last_error
		FROM sync_queue`
	args := []interface{}{}
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, string(state))
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	var ops []model.QueuedOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			log.Printf("[MySQLQueueStore] Skipping unreadable row: %v", err)
			continue
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}

// Update overwrites the stored operation with the same ID.
func (s *MySQLQueueStore) Update(ctx context.Context, op *model.QueuedOperation) error {
	query := `UPDATE sync_queue
		SET attempts = ?, last_attempt_at = ?, state = ?, last_error = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		op.Attempts, nullableTime(op.LastAttemptAt), string(op.State), op.LastError, op.ID)
	if err != nil {
		return fmt.Errorf("failed to update operation %s: %w", op.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes one operation by ID.
func (s *MySQLQueueStore) Remove(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove operation %s: %w", id, err)
	}
	return nil
}

// RemoveByState deletes all operations with the given state.
func (s *MySQLQueueStore) RemoveByState(ctx context.Context, state model.OperationState) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE state = ?`, string(state))
	if err != nil {
		return 0, fmt.Errorf("failed to remove %s operations: %w", state, err)
	}
	return result.RowsAffected()
}

// Clear deletes every operation.
func (s *MySQLQueueStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue`)
	if err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *MySQLQueueStore) Close() error {
	return s.db.Close()
}

// Ensure MySQLQueueStore implements QueueStore
var _ QueueStore = (*MySQLQueueStore)(nil)
