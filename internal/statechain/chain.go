package statechain

import (
	"crypto/ed25519"
	"time"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
	"github.com/sigaid/sigaid-core/internal/identity"
)

// Builder accumulates entries for one agent's chain on the client side. It
// tracks the local head so each new entry chains onto the last one without
// a round trip to the Authority just to learn sequence/prev_hash.
type Builder struct {
	kp      *identity.KeyPair
	agentID identity.AgentID
	head    Head
}

// NewBuilder starts a Builder at EmptyHead. Use Resume for an agent that
// already has entries.
func NewBuilder(kp *identity.KeyPair) (*Builder, error) {
	agentID, err := kp.AgentID()
	if err != nil {
		return nil, err
	}
	return &Builder{kp: kp, agentID: agentID, head: EmptyHead}, nil
}

// Resume starts a Builder at a known head, for an agent resuming an
// existing chain (e.g. after loading state from the Authority or a local
// cache).
func Resume(kp *identity.KeyPair, head Head) (*Builder, error) {
	agentID, err := kp.AgentID()
	if err != nil {
		return nil, err
	}
	return &Builder{kp: kp, agentID: agentID, head: head}, nil
}

// Head returns the builder's current local head.
func (b *Builder) Head() Head {
	return b.head
}

// Append constructs, signs, and advances the local head by one entry. It
// does not talk to the Authority; callers send the result to the Authority
// and only advance further locally once the Authority confirms.
func (b *Builder) Append(actionType ActionType, summary string, payload []byte, sessionID string, at time.Time) (*Entry, error) {
	dataHash := sigcrypto.Hash(payload)

	entry := &Entry{
		AgentID:        b.agentID,
		Sequence:       b.head.Sequence + 1,
		PrevHash:       b.head.EntryHash,
		ActionType:     actionType,
		Summary:        summary,
		ActionDataHash: dataHash,
		Timestamp:      at.UTC(),
		SessionID:      sessionID,
	}

	canonical := canonicalBytes(entry)
	sig, err := b.kp.Sign(sigcrypto.DomainState, canonical)
	if err != nil {
		return nil, err
	}
	entry.Signature = sig
	entry.EntryHash = computeEntryHash(canonical, sig)

	b.head = Head{Sequence: entry.Sequence, EntryHash: entry.EntryHash}
	return entry, nil
}

// Rollback restores the builder's head to before the last Append, for use
// when the Authority rejects the proposed entry for a reason other than a
// fork (e.g. a transient network error) and the caller wants to retry
// cleanly.
func (b *Builder) Rollback(to Head) {
	b.head = to
}

// VerifyEntrySelfConsistent checks that an entry's entry_hash recomputes
// from its own canonical bytes and signature, and that the signature
// verifies under pub. It does not check chain linkage to neighbors.
func VerifyEntrySelfConsistent(pub ed25519.PublicKey, e *Entry) error {
	canonical := canonicalBytes(e)
	if !sigcrypto.Verify(pub, sigcrypto.DomainState, canonical, e.Signature) {
		return ErrBadSignature
	}
	if computeEntryHash(canonical, e.Signature) != e.EntryHash {
		return ErrHashMismatch
	}
	return nil
}
