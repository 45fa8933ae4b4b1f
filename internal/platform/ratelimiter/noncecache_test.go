package ratelimiter

import (
	"testing"
	"time"
)

func TestNonceCacheRejectsReplayWithinWindow(t *testing.T) {
	c := NewNonceCache(2 * time.Minute)
	now := time.Now()
	nonce := []byte("abc123")

	if !c.CheckAndStore("agent-1", nonce, now) {
		t.Fatal("first observation of a nonce must be accepted")
	}
	if c.CheckAndStore("agent-1", nonce, now.Add(30*time.Second)) {
		t.Fatal("replayed nonce within the window must be rejected")
	}
}

func TestNonceCacheScopesByKey(t *testing.T) {
	c := NewNonceCache(2 * time.Minute)
	now := time.Now()
	nonce := []byte("shared-nonce")

	if !c.CheckAndStore("agent-1", nonce, now) {
		t.Fatal("first observation for agent-1 must be accepted")
	}
	if !c.CheckAndStore("agent-2", nonce, now) {
		t.Fatal("the same nonce under a different scope must be accepted")
	}
}

func TestNonceCacheAllowsAfterWindowExpires(t *testing.T) {
	c := NewNonceCache(1 * time.Minute)
	now := time.Now()
	nonce := []byte("expiring-nonce")

	if !c.CheckAndStore("agent-1", nonce, now) {
		t.Fatal("first observation must be accepted")
	}
	if !c.CheckAndStore("agent-1", nonce, now.Add(2*time.Minute)) {
		t.Fatal("nonce outside the window must be treated as fresh")
	}
}

func TestNonceCacheEvictsStaleEntries(t *testing.T) {
	c := NewNonceCache(1 * time.Minute)
	now := time.Now()

	for i := 0; i < 600; i++ {
		nonce := []byte{byte(i), byte(i >> 8)}
		c.CheckAndStore("agent-1", nonce, now)
	}

	c.mu.Lock()
	before := len(c.seen)
	c.mu.Unlock()
	if before == 0 {
		t.Fatal("expected entries to have been recorded")
	}

	// Advance well past the window and keep going up to hit 1024, the next
	// 512th hit, which runs the sweep.
	future := now.Add(10 * time.Minute)
	for i := 600; i < 1024; i++ {
		nonce := []byte{byte(i), byte(i >> 8)}
		c.CheckAndStore("agent-1", nonce, future)
	}

	c.mu.Lock()
	after := len(c.seen)
	c.mu.Unlock()
	if after >= before {
		t.Fatalf("expected stale entries to be evicted, before=%d after=%d", before, after)
	}
}
