package statechain

import (
	"errors"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
)

// Tree is a binary Merkle tree over an ordered list of entry_hash values,
// padded with the zero hash to the next power of two. Leaf and internal
// node hashing are domain-separated with a single leading byte so a leaf
// can never collide with an internal node at the same position.
type Tree struct {
	leaves [][32]byte // entry_hash values, in sequence order, before padding
	levels [][][32]byte
}

var errEmptyLeaves = errors.New("statechain: cannot build a merkle tree with no leaves")

func leafHash(entryHash [32]byte) [32]byte {
	return sigcrypto.Hash([]byte{0x00}, entryHash[:])
}

func internalHash(left, right [32]byte) [32]byte {
	return sigcrypto.Hash([]byte{0x01}, left[:], right[:])
}

// NewTree builds a Merkle tree over entryHashes.
func NewTree(entryHashes [][32]byte) (*Tree, error) {
	if len(entryHashes) == 0 {
		return nil, errEmptyLeaves
	}

	size := 1
	for size < len(entryHashes) {
		size *= 2
	}

	level := make([][32]byte, size)
	for i := range level {
		if i < len(entryHashes) {
			level[i] = leafHash(entryHashes[i])
		} else {
			level[i] = leafHash(ZeroHash)
		}
	}

	levels := [][][32]byte{level}
	for len(level) > 1 {
		next := make([][32]byte, len(level)/2)
		for i := range next {
			next[i] = internalHash(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}

	leaves := make([][32]byte, len(entryHashes))
	copy(leaves, entryHashes)
	return &Tree{leaves: leaves, levels: levels}, nil
}

// Root returns the tree's committed root hash.
func (t *Tree) Root() [32]byte {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// InclusionProof is the sibling path needed to recompute the root from one
// leaf's entry_hash.
type InclusionProof struct {
	Index     int
	EntryHash [32]byte
	Siblings  [][32]byte // bottom to top
	RightSide []bool     // RightSide[i] true means Siblings[i] is the right child at that level
}

// Prove builds an inclusion proof for the entry at index.
func (t *Tree) Prove(index int) (*InclusionProof, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, errors.New("statechain: index out of range")
	}

	proof := &InclusionProof{Index: index, EntryHash: t.leaves[index]}
	pos := index
	for level := 0; level < len(t.levels)-1; level++ {
		layer := t.levels[level]
		var siblingIdx int
		var isRight bool
		if pos%2 == 0 {
			siblingIdx = pos + 1
			isRight = true
		} else {
			siblingIdx = pos - 1
			isRight = false
		}
		proof.Siblings = append(proof.Siblings, layer[siblingIdx])
		proof.RightSide = append(proof.RightSide, isRight)
		pos /= 2
	}
	return proof, nil
}

// VerifyInclusionProof recomputes the root from proof and compares it to
// root.
func VerifyInclusionProof(proof *InclusionProof, root [32]byte) bool {
	current := leafHash(proof.EntryHash)
	for i, sibling := range proof.Siblings {
		if proof.RightSide[i] {
			current = internalHash(current, sibling)
		} else {
			current = internalHash(sibling, current)
		}
	}
	return current == root
}
