package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSingleShotPerWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemory(time.Minute, clock.Now)
	ctx := context.Background()

	if !limiter.IsAllowedByRateLimit(ctx, "host1", "u1", "LOGIN") {
		t.Fatal("first attempt must be admitted")
	}
	if limiter.IsAllowedByRateLimit(ctx, "host1", "u1", "LOGIN") {
		t.Fatal("second attempt within the window must be denied")
	}

	// A denied attempt must not extend the window.
	clock.Advance(59 * time.Second)
	if limiter.IsAllowedByRateLimit(ctx, "host1", "u1", "LOGIN") {
		t.Fatal("attempt before expiry must be denied")
	}
	clock.Advance(2 * time.Second)
	if !limiter.IsAllowedByRateLimit(ctx, "host1", "u1", "LOGIN") {
		t.Fatal("attempt after expiry must be admitted again")
	}
}

func TestIndependentKeys(t *testing.T) {
	limiter := NewMemory(time.Minute, nil)
	ctx := context.Background()

	if !limiter.IsAllowedByRateLimit(ctx, "host1", "u1", "LOGIN") {
		t.Fatal("first key must be admitted")
	}
	if !limiter.IsAllowedByRateLimit(ctx, "host2", "u1", "LOGIN") {
		t.Fatal("different host must be an independent key")
	}
	if !limiter.IsAllowedByRateLimit(ctx, "host1", "u2", "LOGIN") {
		t.Fatal("different principal must be an independent key")
	}
	if !limiter.IsAllowedByRateLimit(ctx, "host1", "u1", "PASSWORD_RESET") {
		t.Fatal("different operation must be an independent key")
	}
}

func TestConcurrentFirstAttemptsAdmitExactlyOne(t *testing.T) {
	limiter := NewMemory(time.Minute, nil)
	ctx := context.Background()

	const n = 50
	var admitted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if limiter.IsAllowedByRateLimit(ctx, "host1", "", "LOGIN") {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := admitted.Load(); got != 1 {
		t.Fatalf("expected exactly 1 admission, got %d", got)
	}
}

func TestSweepDropsExpiredEntries(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemory(time.Minute, clock.Now)
	ctx := context.Background()

	limiter.IsAllowedByRateLimit(ctx, "old", "", "LOGIN")
	clock.Advance(2 * time.Minute)

	// Trigger the periodic sweep with fresh inserts.
	for i := 0; i < sweepEvery; i++ {
		limiter.IsAllowedByRateLimit(ctx, "host", string(rune('a'+i%26)), string(rune('A'+i/26)))
	}

	limiter.mu.Lock()
	_, stale := limiter.entries["old||LOGIN"]
	limiter.mu.Unlock()
	if stale {
		t.Fatal("expired entry must be swept")
	}
}

func TestIndependentLimiterInstances(t *testing.T) {
	login := NewMemory(time.Minute, nil)
	reset := NewMemory(time.Hour, nil)
	ctx := context.Background()

	if !login.IsAllowedByRateLimit(ctx, "h", "u", "LOGIN") {
		t.Fatal("login limiter first attempt must be admitted")
	}
	if !reset.IsAllowedByRateLimit(ctx, "h", "u", "PASSWORD_RESET") {
		t.Fatal("exhausting one flow must not affect another")
	}
}
