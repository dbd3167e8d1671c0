package engine

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAcquireRespectsRate(t *testing.T) {
	rl := NewRateLimiter(2) // 2 tokens/sec, burst 2

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// The first two acquisitions drain the burst instantly, the third
	// must wait roughly 1/rate seconds for a new token.
	if elapsed < 400*time.Millisecond {
		t.Fatalf("expected third acquire to wait for a refilled token, elapsed %v", elapsed)
	}
}

func TestRateLimiterAcquireHonorsContextCancel(t *testing.T) {
	rl := NewRateLimiter(1)
	_ = rl.Acquire(context.Background()) // drain the single burst token

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := rl.Acquire(ctx); err == nil {
		t.Fatal("expected context deadline to cancel the wait")
	}
}
