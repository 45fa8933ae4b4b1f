// Package statechain implements the hash-linked, append-only per-agent
// action log: entry construction and signing on the client side, the
// Authority's fork-detecting append store, offline chain verification, and
// Merkle inclusion proofs against a committed chain.
package statechain

import (
	"encoding/binary"
	"errors"
	"time"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
	"github.com/sigaid/sigaid-core/internal/identity"
)

// ActionType is a closed set of action kinds an entry can record, matching
// the vocabulary the rest of the ecosystem already logs against.
type ActionType string

const (
	ActionTransaction  ActionType = "transaction"
	ActionAttestation  ActionType = "attestation"
	ActionUpgrade      ActionType = "upgrade"
	ActionReset        ActionType = "reset"
	ActionCustom       ActionType = "custom"
	ActionToolCall     ActionType = "tool_call"
	ActionLLMRequest   ActionType = "llm_request"
	ActionDecision     ActionType = "decision"
	ActionTaskStart    ActionType = "task_start"
	ActionTaskComplete ActionType = "task_complete"
	ActionError        ActionType = "error"
)

// ZeroHash is the sequence=-1 sentinel prev_hash for a fresh agent with no
// entries yet.
var ZeroHash [32]byte

// Entry is one immutable record in an agent's state chain. Payload is kept
// only long enough to compute ActionDataHash; it is never itself part of
// the canonical signed bytes or transmitted to the Authority.
type Entry struct {
	AgentID        identity.AgentID
	Sequence       int64
	PrevHash       [32]byte
	ActionType     ActionType
	Summary        string
	ActionDataHash [32]byte
	Timestamp      time.Time
	SessionID      string
	EntryHash      [32]byte
	Signature      []byte
}

var (
	ErrBadSignature      = errors.New("statechain: signature does not verify")
	ErrHashMismatch      = errors.New("statechain: entry hash does not recompute")
	ErrSequenceMismatch  = errors.New("statechain: sequence mismatch")
	ErrPrevHashMismatch  = errors.New("statechain: prev_hash mismatch")
	ErrEmptyChain        = errors.New("statechain: empty chain")
	ErrSigningKeyChanged = errors.New("statechain: signing key differs from registered key")
)

// ForkError is returned by the Authority's append path when a client
// proposes an entry inconsistent with the committed head. It is a hard
// error: the client must surface it and never attempt silent reconciliation.
type ForkError struct {
	CurrentHead Head
}

func (e *ForkError) Error() string {
	return "statechain: fork detected against committed head"
}

func (e *ForkError) Is(target error) bool {
	return target == ErrFork
}

// ErrFork is the sentinel matched via errors.Is against a ForkError.
var ErrFork = errors.New("statechain: fork")

// Head names the tip of a chain: the sequence and entry_hash of its last
// committed entry, or (-1, ZeroHash) for an empty chain.
type Head struct {
	Sequence  int64
	EntryHash [32]byte
}

// EmptyHead is the head of a fresh agent with no entries.
var EmptyHead = Head{Sequence: -1, EntryHash: ZeroHash}

// canonicalBytes builds the exact byte layout that an entry's Signature
// covers: every field except Signature and EntryHash, each length-prefixed
// so that variable-length fields (Summary, SessionID) can't be confused
// with fixed-length neighbors.
func canonicalBytes(e *Entry) []byte {
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], uint64(e.Sequence))

	tsBuf := []byte(e.Timestamp.UTC().Format(time.RFC3339Nano))

	parts := [][]byte{
		[]byte(e.AgentID),
		seqBuf[:],
		e.PrevHash[:],
		[]byte(e.ActionType),
		[]byte(e.Summary),
		e.ActionDataHash[:],
		tsBuf,
		[]byte(e.SessionID),
	}

	var out []byte
	var lenBuf [4]byte
	for _, p := range parts {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		out = append(out, lenBuf[:]...)
		out = append(out, p...)
	}
	return out
}

// computeEntryHash is BLAKE3(canonical_bytes || signature).
func computeEntryHash(canonical, signature []byte) [32]byte {
	return sigcrypto.Hash(canonical, signature)
}
