// Package lease implements the exclusive-lease protocol: an Authority-side
// state machine that grants one session at a time per agent, and a
// client-side helper for acquiring, renewing, releasing, and holding a
// lease for the duration of a scoped operation.
package lease

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
	"github.com/sigaid/sigaid-core/internal/identity"
)

// State names the logical state of a per-agent lease slot as observed at a
// point in time. Expired is a read-time projection: the Authority does not
// eagerly sweep expired records, it reclassifies them as Free on next
// access.
type State string

const (
	StateFree    State = "free"
	StateHeld    State = "held"
	StateExpired State = "expired"
)

// Record is the Authority's bookkeeping for one agent's lease slot.
type Record struct {
	AgentID       identity.AgentID
	SessionID     string
	TokenJTI      string
	Sequence      int64
	AcquiredAt    time.Time
	ExpiresAt     time.Time
	LastRenewedAt time.Time
}

var (
	ErrUnknownAgent       = errors.New("lease: unknown agent")
	ErrInvalidSignature   = errors.New("lease: invalid signature")
	ErrClockSkew          = errors.New("lease: timestamp outside clock skew window")
	ErrReplayedNonce      = errors.New("lease: nonce replay detected")
	ErrNoActiveLease      = errors.New("lease: no active lease")
	ErrSessionMismatch    = errors.New("lease: session mismatch")
	ErrLeaseExpired       = errors.New("lease: lease expired")
	ErrInvalidToken       = errors.New("lease: invalid lease token")
	ErrLeaseHeldByAnother = errors.New("lease: held by another session")
)

// HeldError is returned by Acquire when the agent's slot is currently held
// by a different session. It satisfies errors.Is against
// ErrLeaseHeldByAnother so callers can match on the sentinel without losing
// the holder detail.
type HeldError struct {
	HolderSessionID string
	ExpiresAt       time.Time
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("lease: held by session %s until %s", e.HolderSessionID, e.ExpiresAt.Format(time.RFC3339))
}

func (e *HeldError) Is(target error) bool {
	return target == ErrLeaseHeldByAnother
}

// AcquireRequest is the signed request a client sends to acquire a lease.
type AcquireRequest struct {
	AgentID   identity.AgentID
	SessionID string
	Timestamp time.Time
	Nonce     []byte
	TTL       time.Duration
	Signature []byte
}

// signingMessage builds the exact byte layout that AcquireRequest.Signature
// is computed over: agent_id || session_id || ts || nonce || ttl, with ts
// as RFC3339Nano UTC text and ttl as whole seconds, big-endian uint64.
func signingMessage(agentID, sessionID string, ts time.Time, nonce []byte, ttl time.Duration) []byte {
	var ttlBuf [8]byte
	binary.BigEndian.PutUint64(ttlBuf[:], uint64(ttl/time.Second))

	tsBytes := []byte(ts.UTC().Format(time.RFC3339Nano))

	out := make([]byte, 0, len(agentID)+len(sessionID)+len(tsBytes)+len(nonce)+8)
	out = append(out, []byte(agentID)...)
	out = append(out, []byte(sessionID)...)
	out = append(out, tsBytes...)
	out = append(out, nonce...)
	out = append(out, ttlBuf[:]...)
	return out
}

// PublicKeyLookup resolves an agent's currently registered public key; the
// Authority uses it to verify lease-protocol signatures without importing
// the registry package directly.
type PublicKeyLookup interface {
	LookupPublicKey(agentID identity.AgentID) (ed25519.PublicKey, bool)
}

func verifyAcquireSignature(pub ed25519.PublicKey, req AcquireRequest) bool {
	msg := signingMessage(string(req.AgentID), req.SessionID, req.Timestamp, req.Nonce, req.TTL)
	return sigcrypto.Verify(pub, sigcrypto.DomainLease, msg, req.Signature)
}
