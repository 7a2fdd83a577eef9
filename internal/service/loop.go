package service

import (
	"context"
	"sync"
)

// Loop runs posted closures one at a time on a single goroutine. Everything
// owned by a map session is touched only from inside the loop.
//
// The queue is unbounded so a closure running on the loop can post follow-up
// work without blocking.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	notify chan struct{}
}

// NewLoop creates an idle loop. Call Run to start processing.
func NewLoop() *Loop {
	return &Loop{notify: make(chan struct{}, 1)}
}

// Post queues fn. It never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Do posts fn and waits for it to finish. It must not be called from the loop
// goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes closures until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	for {
		for _, fn := range l.drain() {
			fn()
		}
		select {
		case <-ctx.Done():
			return
		case <-l.notify:
		}
	}
}

func (l *Loop) drain() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.queue
	l.queue = nil
	return q
}
