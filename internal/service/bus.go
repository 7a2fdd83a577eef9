package service

import (
	"context"
	"sync"
)

// Event actions published by a map session.
const (
	ActionReady      = "ready"
	ActionFailed     = "failed"
	ActionOrdered    = "ordered"
	ActionVisibility = "visibility"
)

// Event resources.
const (
	ResourceOverlay = "overlays"
	ResourceMap     = "map"
)

// Event is a change in a map session.
type Event struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	ID       string `json:"id,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// EventBus fans events out to subscribers. Slow subscribers miss events
// rather than block the publisher.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends e to every subscriber without blocking.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of events that is closed when ctx ends.
func (b *EventBus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}()
	return ch
}

// Subscribers returns the current number of subscribers.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
