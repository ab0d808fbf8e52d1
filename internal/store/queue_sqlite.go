package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"tillbridge-pos-agent/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteQueueStore implements QueueStore using SQLite.
// Thread-safe with WAL mode; the register survives process restarts with its
// pending operations intact.
type SQLiteQueueStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteQueueStore creates a new SQLite queue store.
// dbPath is the path to the SQLite database file (e.g., "./data/queue.db")
func NewSQLiteQueueStore(dbPath string) (*SQLiteQueueStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createQueueTable(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteQueueStore] Initialized with database: %s", dbPath)
	return &SQLiteQueueStore{db: db}, nil
}

func createQueueTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS sync_queue (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		payload TEXT NOT NULL,
		enqueued_at DATETIME NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_attempt_at DATETIME,
		state TEXT NOT NULL,
		last_error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_state ON sync_queue(state);
	`
	_, err := db.Exec(query)
	return err
}

// Append persists a new operation at the tail of the queue.
func (s *SQLiteQueueStore) Append(ctx context.Context, op *model.QueuedOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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
func (s *SQLiteQueueStore) List(ctx context.Context) ([]model.QueuedOperation, error) {
	return s.list(ctx, "")
}

// ListByState returns operations with the given state, in insertion order.
func (s *SQLiteQueueStore) ListByState(ctx context.Context, state model.OperationState) ([]model.QueuedOperation, error) {
	return s.list(ctx, state)
}

func (s *SQLiteQueueStore) list(ctx context.Context, state model.OperationState) ([]model.QueuedOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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
			// Corrupted row: skip rather than brick the queue
			log.Printf("[SQLiteQueueStore] Skipping unreadable row: %v", err)
			continue
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}

func scanOperation(rows *sql.Rows) (*model.QueuedOperation, error) {
	var op model.QueuedOperation
	var kind, state, payload string
	var lastAttempt sql.NullTime
	var lastError sql.NullString

	err := rows.Scan(&op.ID, &kind, &op.Endpoint, &op.Method, &payload,
		&op.EnqueuedAt, &op.Attempts, &lastAttempt, &state, &lastError)
	if err != nil {
		return nil, err
	}

	op.Kind = model.OperationKind(kind)
	op.State = model.OperationState(state)
	op.Payload = []byte(payload)
	if lastAttempt.Valid {
		op.LastAttemptAt = lastAttempt.Time
	}
	if lastError.Valid {
		op.LastError = lastError.String
	}
	return &op, nil
}

// Update overwrites the stored operation with the same ID.
func (s *SQLiteQueueStore) Update(ctx context.Context, op *model.QueuedOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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
func (s *SQLiteQueueStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove operation %s: %w", id, err)
	}
	return nil
}

// RemoveByState deletes all operations with the given state.
func (s *SQLiteQueueStore) RemoveByState(ctx context.Context, state model.OperationState) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE state = ?`, string(state))
	if err != nil {
		return 0, fmt.Errorf("failed to remove %s operations: %w", state, err)
	}
	return result.RowsAffected()
}

// Clear deletes every operation.
func (s *SQLiteQueueStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue`)
	if err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteQueueStore) Close() error {
	return s.db.Close()
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// Ensure SQLiteQueueStore implements QueueStore
var _ QueueStore = (*SQLiteQueueStore)(nil)
