package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sigaid/sigaid-core/internal/identity"
	"github.com/sigaid/sigaid-core/internal/platform/ratelimiter"
)

// Authority owns the per-agent lease slots. All mutating operations take a
// single mutex: lease operations are expected to be cheap (no I/O beyond
// the in-process nonce cache and token codec), so a coarse lock is enough
// to make every operation linearizable per agent_id without the added
// complexity of per-key locking.
type Authority struct {
	mu      sync.Mutex
	records map[identity.AgentID]*Record

	lookup    PublicKeyLookup
	tokens    *TokenCodec
	nonces    *ratelimiter.NonceCache
	clockSkew time.Duration

	now func() time.Time
}

// NewAuthority constructs a lease Authority. clockSkew bounds both how far
// an acquire timestamp may drift from the Authority's clock and the
// nonce-replay cache's retention window.
func NewAuthority(lookup PublicKeyLookup, tokens *TokenCodec, clockSkew time.Duration) *Authority {
	if clockSkew <= 0 {
		clockSkew = 2 * time.Minute
	}
	return &Authority{
		records:   make(map[identity.AgentID]*Record),
		lookup:    lookup,
		tokens:    tokens,
		nonces:    ratelimiter.NewNonceCache(clockSkew),
		clockSkew: clockSkew,
		now:       time.Now,
	}
}

// Acquire grants an exclusive lease slot to the requesting session,
// rejecting unknown agents, bad signatures, out-of-window timestamps, and
// replayed nonces before ever touching the held/free state.
func (a *Authority) Acquire(_ context.Context, req AcquireRequest) (*Record, string, error) {
	pub, ok := a.lookup.LookupPublicKey(req.AgentID)
	if !ok {
		return nil, "", ErrUnknownAgent
	}
	if !verifyAcquireSignature(pub, req) {
		return nil, "", ErrInvalidSignature
	}

	now := a.now().UTC()
	if absDuration(now.Sub(req.Timestamp.UTC())) > a.clockSkew {
		return nil, "", ErrClockSkew
	}
	if !a.nonces.CheckAndStore(string(req.AgentID), req.Nonce, now) {
		return nil, "", ErrReplayedNonce
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if rec, held := a.records[req.AgentID]; held && now.Before(rec.ExpiresAt) {
		return nil, "", &HeldError{HolderSessionID: rec.SessionID, ExpiresAt: rec.ExpiresAt}
	}

	jti := uuid.NewString()
	expiresAt := now.Add(req.TTL)
	rec := &Record{
		AgentID:       req.AgentID,
		SessionID:     req.SessionID,
		TokenJTI:      jti,
		Sequence:      0,
		AcquiredAt:    now,
		ExpiresAt:     expiresAt,
		LastRenewedAt: now,
	}
	token, err := a.tokens.Mint(Claims{
		AgentID:   string(req.AgentID),
		SessionID: req.SessionID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		JTI:       jti,
		Seq:       0,
	})
	if err != nil {
		return nil, "", err
	}
	a.records[req.AgentID] = rec
	return cloneRecord(rec), token, nil
}

// Renew extends an already-held lease's expiry and rotates its token,
// failing closed if the caller's session or token no longer matches the
// held record.
func (a *Authority) Renew(_ context.Context, agentID identity.AgentID, sessionID, currentToken string, ttl time.Duration) (*Record, string, error) {
	claims, err := a.tokens.Parse(currentToken)
	if err != nil {
		return nil, "", ErrSessionMismatch
	}
	if claims.AgentID != string(agentID) || claims.SessionID != sessionID {
		return nil, "", ErrSessionMismatch
	}

	now := a.now().UTC()

	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records[agentID]
	if !ok || rec.SessionID != sessionID || rec.TokenJTI != claims.JTI {
		return nil, "", ErrSessionMismatch
	}
	if now.After(rec.ExpiresAt) {
		return nil, "", ErrLeaseExpired
	}

	base := rec.ExpiresAt
	if now.After(base) {
		base = now
	}
	rec.ExpiresAt = base.Add(ttl)
	rec.Sequence++
	rec.LastRenewedAt = now
	rec.TokenJTI = uuid.NewString()

	token, err := a.tokens.Mint(Claims{
		AgentID:   string(agentID),
		SessionID: sessionID,
		IssuedAt:  now,
		ExpiresAt: rec.ExpiresAt,
		JTI:       rec.TokenJTI,
		Seq:       rec.Sequence,
	})
	if err != nil {
		return nil, "", err
	}
	return cloneRecord(rec), token, nil
}

// Release frees a held lease slot. It is idempotent: releasing
// an agent with no active record is reported as ErrNoActiveLease rather
// than treated as a hard failure, so callers that always release on exit
// never need to special-case "already released".
func (a *Authority) Release(_ context.Context, agentID identity.AgentID, sessionID, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records[agentID]
	if !ok {
		return ErrNoActiveLease
	}
	if claims, err := a.tokens.Parse(token); err == nil {
		if claims.SessionID != sessionID || rec.SessionID != sessionID {
			return ErrSessionMismatch
		}
	} else if rec.SessionID != sessionID {
		return ErrSessionMismatch
	}
	delete(a.records, agentID)
	return nil
}

// RequireHeld validates that token is the live, unexpired lease for
// (agentID, sessionID), as every state-append and proof-verification path
// must before proceeding.
func (a *Authority) RequireHeld(agentID identity.AgentID, sessionID, token string) (*Record, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, ErrNoActiveLease
	}

	now := a.now().UTC()

	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records[agentID]
	if !ok || rec.SessionID != sessionID || rec.TokenJTI != claims.JTI || now.After(rec.ExpiresAt) {
		return nil, ErrNoActiveLease
	}
	return cloneRecord(rec), nil
}

// Status reports the logical lease state for agentID without mutating any
// bookkeeping.
func (a *Authority) Status(agentID identity.AgentID) (*Record, State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records[agentID]
	if !ok {
		return nil, StateFree
	}
	if a.now().UTC().After(rec.ExpiresAt) {
		return cloneRecord(rec), StateExpired
	}
	return cloneRecord(rec), StateHeld
}

func cloneRecord(r *Record) *Record {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
