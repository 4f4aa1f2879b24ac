// Package cache provides the two cache tiers used by tenant connection
// resolution: a per-process TTL store and a Redis-backed fail-safe cache that
// can serve stale entries when the upstream fetch misbehaves.
package cache

import (
	"sync"
	"time"
)

// Local is an in-process key-addressed TTL store. Writes are add-or-overwrite
// and safe under concurrent access; last writer wins per key. The clock is
// injectable so tests can control expiry without sleeping.
type Local[V any] struct {
	mu      sync.RWMutex
	entries map[string]localEntry[V]
	ttl     time.Duration
	now     func() time.Time
}

type localEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// LocalConfig configures a Local store. TTL <= 0 means entries never expire.
type LocalConfig struct {
	TTL time.Duration
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// NewLocal builds an empty store.
func NewLocal[V any](cfg LocalConfig) *Local[V] {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Local[V]{
		entries: make(map[string]localEntry[V]),
		ttl:     cfg.TTL,
		now:     now,
	}
}

// Get returns the live value for key, if any. Expired entries are treated as
// absent and dropped lazily.
func (l *Local[V]) Get(key string) (V, bool) {
	l.mu.RLock()
	e, ok := l.entries[key]
	l.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !e.expiresAt.IsZero() && l.now().After(e.expiresAt) {
		l.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, still := l.entries[key]; still && !cur.expiresAt.IsZero() && l.now().After(cur.expiresAt) {
			delete(l.entries, key)
		}
		l.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, resetting its TTL.
func (l *Local[V]) Set(key string, value V) {
	var expiresAt time.Time
	if l.ttl > 0 {
		expiresAt = l.now().Add(l.ttl)
	}

	l.mu.Lock()
	l.entries[key] = localEntry[V]{value: value, expiresAt: expiresAt}
	l.mu.Unlock()
}

// Delete removes key if present.
func (l *Local[V]) Delete(key string) {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
}

// Len reports the number of stored entries, including not-yet-swept expired ones.
func (l *Local[V]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
