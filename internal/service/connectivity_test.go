package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePinger answers probes from a settable error.
type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (p *fakePinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePinger) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func newTestMonitor(t *testing.T) (*ConnectivityMonitor, *fakePinger, *QueueManager) {
	t.Helper()
	clock := newFakeClock()
	queue, _ := newTestQueueManager(t, &fakeDeliverer{}, clock)
	pinger := &fakePinger{}
	return NewConnectivityMonitor(pinger, queue, 0), pinger, queue
}

func TestConnectivityMonitor_ProbeTransitions(t *testing.T) {
	ctx := context.Background()
	monitor, pinger, queue := newTestMonitor(t)

	require.True(t, monitor.CheckNow(ctx))
	assert.True(t, monitor.Online())
	assert.True(t, queue.Online())

	pinger.setErr(fmt.Errorf("dial tcp: connection refused"))
	require.False(t, monitor.CheckNow(ctx))
	assert.False(t, monitor.Online())
	assert.False(t, queue.Online(), "queue must follow the monitor offline")

	pinger.setErr(nil)
	require.True(t, monitor.CheckNow(ctx))
	assert.True(t, monitor.Online())
	assert.True(t, queue.Online())
}

func TestConnectivityMonitor_SubscribersSeeEdgesOnly(t *testing.T) {
	ctx := context.Background()
	monitor, pinger, _ := newTestMonitor(t)

	var mu sync.Mutex
	var seen []bool
	unsubscribe := monitor.Subscribe(func(online bool) {
		mu.Lock()
		seen = append(seen, online)
		mu.Unlock()
	})

	// Already online; a successful probe is not a transition.
	monitor.CheckNow(ctx)
	monitor.CheckNow(ctx)

	pinger.setErr(fmt.Errorf("dial tcp: connection refused"))
	monitor.CheckNow(ctx)
	monitor.CheckNow(ctx) // still offline, no second notification

	pinger.setErr(nil)
	monitor.CheckNow(ctx)

	mu.Lock()
	assert.Equal(t, []bool{false, true}, seen)
	mu.Unlock()

	unsubscribe()
	unsubscribe() // second call must be harmless

	pinger.setErr(fmt.Errorf("dial tcp: connection refused"))
	monitor.CheckNow(ctx)

	mu.Lock()
	assert.Len(t, seen, 2, "unsubscribed callback must not fire again")
	mu.Unlock()
}

func TestConnectivityMonitor_StartStop(t *testing.T) {
	monitor, _, queue := newTestMonitor(t)

	monitor.Start()
	monitor.Start() // idempotent

	assert.Eventually(t, func() bool {
		return monitor.Online() && queue.Online()
	}, 2*time.Second, 10*time.Millisecond)

	monitor.Stop()
	monitor.Stop() // idempotent
}
