package util

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTimeout(t *testing.T) {
	e := NewEvent()
	start := time.Now()
	err := e.Wait(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestEventNotifyWithoutWaiters(t *testing.T) {
	e := NewEvent()
	e.Notify()
	e.Notify()
	assert.False(t, e.Pending())

	// No stale signal: the next wait blocks until its own notify.
	assert.ErrorIs(t, e.Wait(20*time.Millisecond), ErrTimeout)
}

func TestEventWakesAllWaiters(t *testing.T) {
	e := NewEvent()
	const n = 5

	var wg sync.WaitGroup
	var woken int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.Wait(5 * time.Second); err == nil {
				atomic.AddInt32(&woken, 1)
			}
		}()
	}

	require.Eventually(t, e.Pending, time.Second, time.Millisecond)
	// Give the remaining waiters a moment to block.
	time.Sleep(20 * time.Millisecond)
	e.Notify()
	wg.Wait()

	assert.Equal(t, int32(n), atomic.LoadInt32(&woken))
	assert.False(t, e.Pending())
}

func TestEventWaitUntilDoneBeforeWait(t *testing.T) {
	e := NewEvent()
	done := true
	require.NoError(t, e.WaitUntil(context.Background(), time.Millisecond, func() bool { return done }))
}

func TestEventWaitUntilIgnoresUnrelatedNotify(t *testing.T) {
	e := NewEvent()
	var mu sync.Mutex
	done := false
	isDone := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return done
	}

	result := make(chan error, 1)
	go func() {
		result <- e.WaitUntil(context.Background(), 5*time.Second, isDone)
	}()

	require.Eventually(t, e.Pending, time.Second, time.Millisecond)
	e.Notify()
	select {
	case err := <-result:
		t.Fatalf("returned before completion: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	mu.Lock()
	done = true
	mu.Unlock()
	e.Notify()
	assert.NoError(t, <-result)
}

func TestEventWaitUntilContext(t *testing.T) {
	e := NewEvent()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := e.WaitUntil(ctx, 5*time.Second, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, e.Pending())
}

func TestEventPendingClearedOnTimeout(t *testing.T) {
	e := NewEvent()
	long := make(chan error, 1)
	go func() { long <- e.Wait(5 * time.Second) }()
	require.Eventually(t, e.Pending, time.Second, time.Millisecond)

	assert.ErrorIs(t, e.Wait(10*time.Millisecond), ErrTimeout)
	assert.True(t, e.Pending(), "the other waiter is still blocked")

	e.Notify()
	require.NoError(t, <-long)
	assert.False(t, e.Pending())
}
