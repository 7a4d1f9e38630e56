package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitNoIntervalReturnsImmediately(t *testing.T) {
	l := NewInterval()
	done := make(chan error, 1)
	go func() { done <- l.Wait(context.Background(), "binance") }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait blocked with no interval configured")
	}
}

func TestWaitBlocksUntilIntervalElapsed(t *testing.T) {
	l := NewInterval()
	now := time.Now()
	l.now = func() time.Time { return now }
	l.SetMinInterval("news", 50*time.Millisecond)
	l.Advance("news")

	// Free the real timer path by letting wall time pass.
	l.now = time.Now
	start := time.Now()
	if err := l.Wait(context.Background(), "news"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("Wait returned too early: %v", elapsed)
	}
}

func TestWaitHonorsContextCancel(t *testing.T) {
	l := NewInterval()
	l.SetMinInterval("news", time.Hour)
	l.Advance("news")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Wait(ctx, "news") }()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected context error")
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait did not observe cancellation")
	}
}

func TestFailureDoesNotAdvance(t *testing.T) {
	l := NewInterval()
	l.SetMinInterval("binance", time.Hour)
	// No Advance call: a failed request must not start a new window.
	done := make(chan error, 1)
	go func() { done <- l.Wait(context.Background(), "binance") }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait blocked although no success was recorded")
	}
}
