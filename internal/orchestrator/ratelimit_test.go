package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiterCapsConcurrency(t *testing.T) {
	rl := NewRateLimiter(1, 1000)
	ctx := context.Background()

	if err := rl.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	// Second acquire must block until release.
	second := make(chan error, 1)
	go func() {
		second <- rl.Acquire(ctx)
	}()
	select {
	case err := <-second:
		t.Fatalf("second Acquire returned early: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	rl.Release()
	select {
	case err := <-second:
		if err != nil {
			t.Fatalf("second Acquire after release: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second Acquire never unblocked")
	}
	rl.Release()

	if got := rl.Acquires(); got != 2 {
		t.Errorf("Acquires() = %d, want 2", got)
	}
}

func TestRateLimiterAcquireHonorsContext(t *testing.T) {
	rl := NewRateLimiter(1, 1000)
	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer rl.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rl.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want deadline exceeded", err)
	}
	if got := rl.Acquires(); got != 1 {
		t.Errorf("failed acquire was counted: Acquires() = %d", got)
	}
}
