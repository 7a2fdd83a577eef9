package service

import (
	"context"
	"slices"
	"testing"
	"time"
)

func TestLoopRunsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLoop()
	go l.Run(ctx)

	var got []int
	for i := range 5 {
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatal(err)
	}
	if want := []int{0, 1, 2, 3, 4}; !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLoopPostFromLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLoop()
	go l.Run(ctx)

	done := make(chan int, 1)
	var depth func(n int)
	depth = func(n int) {
		if n == 100 {
			done <- n
			return
		}
		l.Post(func() { depth(n + 1) })
	}
	l.Post(func() { depth(0) })

	select {
	case n := <-done:
		if n != 100 {
			t.Fatalf("n = %d", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("nested posts did not run")
	}
}

func TestLoopDoCancelled(t *testing.T) {
	l := NewLoop() // never run
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Do(ctx, func() {}); err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
