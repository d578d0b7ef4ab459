package util

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a wait exceeds its bound.
var ErrTimeout = errors.New("timed out")

// Event bridges an asynchronous completion to any number of blocked
// waiters. A Notify wakes every goroutine currently waiting; it is not
// remembered for later waiters.
type Event struct {
	mu      sync.Mutex
	waiters int
	wake    chan struct{}
}

func NewEvent() *Event {
	return &Event{
		wake: make(chan struct{}),
	}
}

// Notify wakes all current waiters.
func (e *Event) Notify() {
	e.mu.Lock()
	defer e.mu.Unlock()
	close(e.wake)
	e.wake = make(chan struct{})
}

// Pending reports whether any goroutine is inside Wait or WaitUntil.
func (e *Event) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waiters > 0
}

// Wait blocks until the next Notify or until timeout elapses.
func (e *Event) Wait(timeout time.Duration) error {
	return e.WaitUntil(context.Background(), timeout, nil)
}

// WaitUntil blocks until done reports true, ctx ends or timeout elapses.
// done is evaluated with the event lock held, before blocking and after
// every Notify, so a completion recorded before Notify is never missed.
// A nil done returns on the first Notify.
func (e *Event) WaitUntil(ctx context.Context, timeout time.Duration, done func() bool) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	e.mu.Lock()
	e.waiters++
	defer e.leave()
	for {
		if done != nil && done() {
			e.mu.Unlock()
			return nil
		}
		wake := e.wake
		e.mu.Unlock()

		select {
		case <-wake:
			if done == nil {
				return nil
			}
		case <-timer.C:
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
		e.mu.Lock()
	}
}

func (e *Event) leave() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.waiters--
}
