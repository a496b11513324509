// Package ratelimit provides the single-shot admission gate used to throttle
// login, password-reset, and email-verification attempts.
//
// This is deliberately not a counting or leaky-bucket limiter: a key is
// admitted exactly once per TTL window, and every further attempt for the
// same key is denied until the window expires. Denied attempts do not extend
// the window. Downstream flows depend on this exact semantics.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a binary admission check over a (host, principal, operation)
// key. Each sensitive flow owns its own limiter instance with its own TTL
// and operation tag.
type Limiter interface {
	// IsAllowedByRateLimit reports whether this attempt may proceed. The
	// first call for a key within a window returns true; all further
	// calls return false until the window expires.
	IsAllowedByRateLimit(ctx context.Context, host, principal, operation string) bool
}

func compositeKey(host, principal, operation string) string {
	return host + "|" + principal + "|" + operation
}

// Memory is an in-process Limiter backed by a TTL-expiring set. Entries have
// no value beyond presence; expiry is the only deletion path.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
	ttl     time.Duration
	now     func() time.Time

	// inserts since the last sweep; bounds stale entries without a
	// background goroutine.
	inserts int
}

const sweepEvery = 100

// NewMemory creates an in-memory limiter with the given window. now may be
// nil, defaulting to time.Now.
func NewMemory(ttl time.Duration, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     now,
	}
}

// IsAllowedByRateLimit implements Limiter. The check-and-insert runs under
// one mutex acquisition, so two concurrent first attempts for the same key
// cannot both be admitted.
func (m *Memory) IsAllowedByRateLimit(_ context.Context, host, principal, operation string) bool {
	key := compositeKey(host, principal, operation)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expiry, ok := m.entries[key]; ok && now.Before(expiry) {
		return false
	}

	m.entries[key] = now.Add(m.ttl)

	m.inserts++
	if m.inserts >= sweepEvery {
		m.sweep(now)
		m.inserts = 0
	}
	return true
}

// sweep removes expired entries. Must be called holding m.mu.
func (m *Memory) sweep(now time.Time) {
	for key, expiry := range m.entries {
		if !now.Before(expiry) {
			delete(m.entries, key)
		}
	}
}
