package statechain

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/sigaid/sigaid-core/internal/identity"
)

// PublicKeyLookup resolves an agent's registered public key for
// append-time signature verification. Key rotation mid-chain is
// unsupported: appends are verified against the currently registered key,
// and an agent with no registered key (unknown or revoked) fails closed
// with ErrSigningKeyChanged.
type PublicKeyLookup interface {
	LookupPublicKey(agentID identity.AgentID) (ed25519.PublicKey, bool)
}

// LeaseChecker validates that (agentID, sessionID, token) names a
// currently held lease, without this package needing to import the lease
// package's Authority type directly.
type LeaseChecker interface {
	RequireHeld(agentID identity.AgentID, sessionID, token string) error
}

// Store is the Authority's append-only per-agent chain store. Writers are
// serialized per agent_id; readers may run concurrently.
type Store struct {
	mu     sync.RWMutex
	chains map[identity.AgentID][]*Entry
	heads  map[identity.AgentID]Head
	lookup PublicKeyLookup
	leases LeaseChecker
}

// NewStore builds an empty Authority-side state chain store.
func NewStore(lookup PublicKeyLookup, leases LeaseChecker) *Store {
	return &Store{
		chains: make(map[identity.AgentID][]*Entry),
		heads:  make(map[identity.AgentID]Head),
		lookup: lookup,
		leases: leases,
	}
}

// Append validates and commits one entry. On success it returns the new
// head. Any mismatch with the committed head, of sequence or of prev_hash,
// is returned as a *ForkError; lease, signature and unknown-key failures
// are returned as their own sentinel errors, for the HTTP layer to map to
// the right status code.
func (s *Store) Append(_ context.Context, sessionID, token string, e *Entry) (Head, error) {
	pub, ok := s.lookup.LookupPublicKey(e.AgentID)
	if !ok {
		return Head{}, ErrSigningKeyChanged
	}

	if err := s.leases.RequireHeld(e.AgentID, sessionID, token); err != nil {
		return Head{}, err
	}

	if err := VerifyEntrySelfConsistent(pub, e); err != nil {
		return Head{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	head := s.heads[e.AgentID]
	if _, exists := s.heads[e.AgentID]; !exists {
		head = EmptyHead
	}

	if e.Sequence != head.Sequence+1 || e.PrevHash != head.EntryHash {
		return Head{}, &ForkError{CurrentHead: head}
	}

	s.chains[e.AgentID] = append(s.chains[e.AgentID], e)
	newHead := Head{Sequence: e.Sequence, EntryHash: e.EntryHash}
	s.heads[e.AgentID] = newHead
	return newHead, nil
}

// Head returns the current head for agentID, or EmptyHead if it has no
// entries yet.
func (s *Store) Head(agentID identity.AgentID) Head {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.heads[agentID]; ok {
		return h
	}
	return EmptyHead
}

// History returns entries in ascending sequence order, offset and limited.
func (s *Store) History(agentID identity.AgentID, offset, limit int) ([]*Entry, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.chains[agentID]
	total := int64(len(all))
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil, total
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	out := make([]*Entry, end-offset)
	copy(out, all[offset:end])
	return out, total
}
