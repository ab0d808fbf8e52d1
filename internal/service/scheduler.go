package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// SyncScheduler is the single tick source behind queue draining and cache
// staleness: every interval it runs a drain pass and, when the product cache
// has gone stale while the backend is reachable, a full refresh. It replaces
// the ad hoc UI polling of a browser POS.
type SyncScheduler struct {
	queue    *QueueManager
	catalog  *CatalogManager
	storeID  string
	interval time.Duration

	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewSyncScheduler creates a sync scheduler for one store.
func NewSyncScheduler(queue *QueueManager, catalog *CatalogManager, storeID string, interval time.Duration) *SyncScheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &SyncScheduler{
		queue:    queue,
		catalog:  catalog,
		storeID:  storeID,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the sync loop.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.interval)
	s.mu.Unlock()

	log.Printf("[SyncScheduler] Started - interval: %v, store: %s", s.interval, s.storeID)
	go s.run()
}

func (s *SyncScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.RunNow(context.Background())
		case <-s.stopCh:
			log.Printf("[SyncScheduler] Stopped")
			return
		}
	}
}

// RunNow performs one scheduler pass immediately.
func (s *SyncScheduler) RunNow(ctx context.Context) {
	if err := s.queue.ProcessQueue(ctx); err != nil {
		log.Printf("[SyncScheduler] Drain error: %v", err)
	}

	if s.storeID != "" && s.queue.Online() && !s.catalog.IsCacheValid(ctx, s.storeID) {
		if err := s.catalog.RefreshCache(ctx, s.storeID); err != nil {
			log.Printf("[SyncScheduler] Cache refresh error: %v", err)
		}
	}
}

// Stop stops the scheduler.
func (s *SyncScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}
