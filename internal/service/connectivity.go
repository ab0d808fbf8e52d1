package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// Pinger probes the backend; a nil error means reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityMonitor polls the backend health endpoint and feeds online and
// offline transitions to the queue manager. It stands in for the browser
// connectivity events of a web POS: the agent has to find out for itself.
type ConnectivityMonitor struct {
	pinger   Pinger
	queue    *QueueManager
	interval time.Duration

	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool

	mu        sync.Mutex
	online    bool
	subs      map[int]func(online bool)
	nextSubID int
}

// NewConnectivityMonitor creates a connectivity monitor.
func NewConnectivityMonitor(pinger Pinger, queue *QueueManager, interval time.Duration) *ConnectivityMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ConnectivityMonitor{
		pinger:   pinger,
		queue:    queue,
		interval: interval,
		stopCh:   make(chan struct{}),
		subs:     make(map[int]func(online bool)),
		online:   true,
	}
}

// Start begins probing. An initial probe runs immediately so the agent does
// not assume connectivity it never had.
func (m *ConnectivityMonitor) Start() {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = true
	m.ticker = time.NewTicker(m.interval)
	m.mu.Unlock()

	log.Printf("[ConnectivityMonitor] Started - interval: %v", m.interval)

	go func() {
		m.CheckNow(context.Background())
		m.run()
	}()
}

func (m *ConnectivityMonitor) run() {
	for {
		select {
		case <-m.ticker.C:
			m.CheckNow(context.Background())
		case <-m.stopCh:
			log.Printf("[ConnectivityMonitor] Stopped")
			return
		}
	}
}

// CheckNow runs one probe immediately and returns the observed state.
func (m *ConnectivityMonitor) CheckNow(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	online := m.pinger.Ping(probeCtx) == nil
	m.setOnline(online)
	return online
}

// Online reports the last observed connectivity state.
func (m *ConnectivityMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *ConnectivityMonitor) setOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	var cbs []func(bool)
	if changed {
		for _, cb := range m.subs {
			cbs = append(cbs, cb)
		}
	}
	m.mu.Unlock()

	// The queue manager handles the edge itself (drain on offline->online).
	m.queue.SetOnline(online)

	if changed {
		if online {
			log.Printf("[ConnectivityMonitor] Backend reachable")
		} else {
			log.Printf("[ConnectivityMonitor] Backend unreachable - going offline")
		}
		for _, cb := range cbs {
			cb(online)
		}
	}
}

// Subscribe registers a callback fired on every online/offline transition.
// The returned function unsubscribes and is safe to call more than once.
func (m *ConnectivityMonitor) Subscribe(cb func(online bool)) func() {
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

// Stop stops the monitor.
func (m *ConnectivityMonitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.ticker != nil {
			m.ticker.Stop()
		}
		close(m.stopCh)
		m.isRunning = false
	})
}
