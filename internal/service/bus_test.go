package service

import (
	"context"
	"testing"
	"time"
)

func TestEventBus(t *testing.T) {
	b := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)

	b.Publish(Event{Resource: ResourceOverlay, Action: ActionReady, ID: "bikeLanes"})
	if e := <-ch; e.ID != "bikeLanes" || e.Action != ActionReady {
		t.Fatalf("event = %+v", e)
	}

	// a full subscriber drops events instead of blocking
	for range 20 {
		b.Publish(Event{Action: ActionOrdered})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffered = %d", len(ch))
	}

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if n := b.Subscribers(); n != 0 {
					t.Fatalf("subscribers = %d", n)
				}
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}
