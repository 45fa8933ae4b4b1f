// Package ratelimiter bounds how often a single agent identity may hit a
// guarded Authority endpoint, independent of whatever coarser quota its API
// key carries.
package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sigaid/sigaid-core/internal/identity"
)

// AgentLimiter applies a token bucket per agent_id and periodically evicts
// idle entries so a steady trickle of distinct, short-lived agent
// identities can't grow the map without bound.
type AgentLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byAgent map[identity.AgentID]*entry
	hits    uint64
	idleTTL time.Duration

	// OnThrottled, if set, is called with the agent_id each time Allow
	// rejects a request for it. Used by the Authority to drive a
	// rate_limited counter without this package importing prometheus.
	OnThrottled func(identity.AgentID)
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates an agent-keyed limiter; returns nil if args are invalid.
func New(rps float64, burst int, idleTTL time.Duration) *AgentLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &AgentLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byAgent: make(map[identity.AgentID]*entry),
		idleTTL: idleTTL,
	}
}

// Allow reports whether one token can be consumed for agentID at now.
func (l *AgentLimiter) Allow(agentID identity.AgentID, now time.Time) bool {
	if l == nil {
		return true
	}
	agentID = identity.AgentID(strings.TrimSpace(string(agentID)))
	if agentID == "" {
		return true
	}

	l.mu.Lock()
	e, ok := l.byAgent[agentID]
	if !ok {
		e = &entry{
			limiter:  rate.NewLimiter(l.limit, l.burst),
			lastSeen: now,
		}
		l.byAgent[agentID] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byAgent {
			if v.lastSeen.Before(cutoff) {
				delete(l.byAgent, k)
			}
		}
	}
	l.mu.Unlock()

	if !allowed && l.OnThrottled != nil {
		l.OnThrottled(agentID)
	}
	return allowed
}
