package service

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"tillbridge-pos-agent/internal/model"
	"tillbridge-pos-agent/internal/store"
	"tillbridge-pos-agent/pkg/uid"
)

// Default drain parameters.
const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = 1 * time.Second
	DefaultOpPause    = 500 * time.Millisecond
)

// Deliverer sends one queued operation to its endpoint. A transport error or
// a non-2xx response must both come back as an error.
type Deliverer interface {
	Do(ctx context.Context, method, endpoint string, payload []byte) error
}

// SyncCallback receives a snapshot of an operation after each status change.
type SyncCallback func(op model.QueuedOperation)

// QueueManagerConfig holds queue manager settings. Zero values fall back to
// the defaults above.
type QueueManagerConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	// OpPause is the pause between operations within one drain pass, so a
	// long queue does not hammer a backend that just came back.
	OpPause time.Duration
	// Now is the manager's time source; tests inject a virtual clock.
	Now func() time.Time
}

// QueueManager owns the offline operation queue: enqueue, drain with
// exponential backoff, status transitions, and change notifications.
//
// Guarantee: every appended operation is delivered at least once, or parked
// as failed after MaxRetries failed attempts — never silently lost.
type QueueManager struct {
	store     store.QueueStore
	deliverer Deliverer

	maxRetries int
	baseDelay  time.Duration
	opPause    time.Duration
	now        func() time.Time

	online   atomic.Bool
	draining atomic.Bool

	mu        sync.Mutex
	subs      map[int]SyncCallback
	nextSubID int
}

// NewQueueManager creates a queue manager over the given durable store and
// deliverer.
func NewQueueManager(qs store.QueueStore, deliverer Deliverer, cfg QueueManagerConfig) *QueueManager {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &QueueManager{
		store:      qs,
		deliverer:  deliverer,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		opPause:    cfg.OpPause,
		now:        cfg.Now,
		subs:       make(map[int]SyncCallback),
	}
	m.online.Store(true)
	return m
}

// Online reports the last observed connectivity state.
func (m *QueueManager) Online() bool {
	return m.online.Load()
}

// SetOnline records a connectivity transition. Coming back online schedules a
// drain; going offline only flips the flag — an attempt already in flight is
// left to finish on its own.
func (m *QueueManager) SetOnline(online bool) {
	was := m.online.Swap(online)
	if online && !was {
		log.Printf("[QueueManager] Back online - scheduling drain")
		go m.ProcessQueue(context.Background())
	}
	if !online && was {
		log.Printf("[QueueManager] Offline - new operations will be queued")
	}
}

// Add appends a new pending operation and returns its ID. It never blocks on
// delivery: if the agent is online a drain is kicked off in the background.
// Draft validation is the caller's job.
func (m *QueueManager) Add(ctx context.Context, draft model.OperationDraft) (string, error) {
	op := &model.QueuedOperation{
		ID:         uid.New(),
		Kind:       draft.Kind,
		Endpoint:   draft.Endpoint,
		Method:     draft.Method,
		Payload:    draft.Payload,
		EnqueuedAt: m.now().UTC(),
		Attempts:   0,
		State:      model.OpPending,
	}

	if err := m.store.Append(ctx, op); err != nil {
		return "", err
	}

	if m.online.Load() {
		go m.ProcessQueue(context.Background())
	}
	return op.ID, nil
}

// Queue returns the full persisted queue in storage order.
func (m *QueueManager) Queue(ctx context.Context) ([]model.QueuedOperation, error) {
	return m.store.List(ctx)
}

// PendingCount returns the number of operations waiting for delivery.
// In-flight and failed operations are not counted.
func (m *QueueManager) PendingCount(ctx context.Context) int {
	ops, err := m.store.ListByState(ctx, model.OpPending)
	if err != nil {
		return 0
	}
	return len(ops)
}

// FailedCount returns the number of operations parked after exhausting retries.
func (m *QueueManager) FailedCount(ctx context.Context) int {
	ops, err := m.store.ListByState(ctx, model.OpFailed)
	if err != nil {
		return 0
	}
	return len(ops)
}

// ProcessQueue runs one drain pass: every pending operation whose backoff
// window has elapsed gets exactly one delivery attempt, in queue order. It is
// a no-op while offline or while another pass is running; redundant calls
// from the scheduler, the connectivity monitor and Add are all safe.
func (m *QueueManager) ProcessQueue(ctx context.Context) error {
	if !m.online.Load() {
		return nil
	}
	if !m.draining.CompareAndSwap(false, true) {
		return nil
	}
	defer m.draining.Store(false)

	pending, err := m.store.ListByState(ctx, model.OpPending)
	if err != nil {
		return err
	}

	for i := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempted := m.processOperation(ctx, &pending[i])
		if attempted && m.opPause > 0 && i < len(pending)-1 {
			time.Sleep(m.opPause)
		}
	}
	return nil
}

// processOperation makes one delivery attempt. Returns false when the
// operation was skipped because its backoff window has not elapsed yet.
func (m *QueueManager) processOperation(ctx context.Context, op *model.QueuedOperation) bool {
	now := m.now()

	// Backoff: baseDelay * 2^attempts since the last failed attempt. Skipped
	// operations are picked up by a later pass, so delivery can run out of
	// enqueue order once any retry happens.
	window := m.baseDelay * (1 << op.Attempts)
	if !op.LastAttemptAt.IsZero() && now.Sub(op.LastAttemptAt) < window {
		return false
	}

	op.State = model.OpInFlight
	if err := m.store.Update(ctx, op); err != nil {
		log.Printf("[QueueManager] Failed to mark %s in flight: %v", op.ID, err)
		return false
	}
	m.notify(*op)

	err := m.deliverer.Do(ctx, op.Method, op.Endpoint, op.Payload)
	if err == nil {
		if err := m.store.Remove(ctx, op.ID); err != nil {
			log.Printf("[QueueManager] Delivered %s but failed to remove it: %v", op.ID, err)
		} else {
			log.Printf("[QueueManager] Delivered operation %s (%s)", op.ID, op.Kind)
		}
		m.notify(*op)
		return true
	}

	op.Attempts++
	op.LastAttemptAt = m.now()
	op.LastError = err.Error()

	if op.Attempts >= m.maxRetries {
		op.State = model.OpFailed
		log.Printf("[QueueManager] Operation %s failed permanently after %d attempts: %v",
			op.ID, op.Attempts, err)
	} else {
		op.State = model.OpPending
		log.Printf("[QueueManager] Operation %s attempt %d failed, will retry: %v",
			op.ID, op.Attempts, err)
	}

	if uerr := m.store.Update(ctx, op); uerr != nil {
		log.Printf("[QueueManager] Failed to persist state of %s: %v", op.ID, uerr)
	}
	m.notify(*op)
	return true
}

// Remove deletes one operation from the queue. Removing an operation that is
// currently in flight races with its completion handler; the queue tolerates
// this because removal of an already-removed ID is a no-op.
func (m *QueueManager) Remove(ctx context.Context, id string) error {
	return m.store.Remove(ctx, id)
}

// ClearFailed removes all permanently failed operations.
func (m *QueueManager) ClearFailed(ctx context.Context) (int64, error) {
	return m.store.RemoveByState(ctx, model.OpFailed)
}

// ClearAll wipes the queue. Use with caution: pending sales are lost.
func (m *QueueManager) ClearAll(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// Subscribe registers a callback invoked after every operation status change.
// The returned function unsubscribes and is safe to call more than once.
func (m *QueueManager) Subscribe(cb SyncCallback) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = cb
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *QueueManager) notify(op model.QueuedOperation) {
	m.mu.Lock()
	cbs := make([]SyncCallback, 0, len(m.subs))
	for _, cb := range m.subs {
		cbs = append(cbs, cb)
	}
	m.mu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[QueueManager] Panic in sync callback: %v", r)
				}
			}()
			cb(op)
		}()
	}
}
