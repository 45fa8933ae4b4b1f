package ratelimiter

import (
	"sync"
	"time"
)

// NonceCache rejects a (scope, nonce) pair that has already been observed
// within window, as required for lease-acquire replay protection. Eviction
// is lazy — piggybacked on CheckAndStore calls every 512 hits — rather than
// a background sweep, the same discipline AgentLimiter uses.
type NonceCache struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	hits   uint64
}

// NewNonceCache builds a cache that treats any (scope, nonce) pair observed
// again within window as a replay.
func NewNonceCache(window time.Duration) *NonceCache {
	if window <= 0 {
		window = 2 * time.Minute
	}
	return &NonceCache{
		seen:   make(map[string]time.Time),
		window: window,
	}
}

func nonceKey(scope string, nonce []byte) string {
	return scope + "\x00" + string(nonce)
}

// CheckAndStore reports whether (scope, nonce) is fresh at now. A false
// return means the pair was already seen within the window and the caller
// must treat the request as a replay. A true return records the pair.
func (c *NonceCache) CheckAndStore(scope string, nonce []byte, now time.Time) bool {
	key := nonceKey(scope, nonce)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits++
	if c.hits%512 == 0 {
		c.evictLocked(now)
	}

	if seenAt, ok := c.seen[key]; ok && now.Sub(seenAt) <= c.window {
		return false
	}
	c.seen[key] = now
	return true
}

func (c *NonceCache) evictLocked(now time.Time) {
	cutoff := now.Add(-c.window)
	for k, t := range c.seen {
		if t.Before(cutoff) {
			delete(c.seen, k)
		}
	}
}
