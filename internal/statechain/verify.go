package statechain

import "crypto/ed25519"

// VerifyChain checks an ordered run of entries: each entry's hash and
// signature are self-consistent, and each adjacent pair chains correctly
// (prev_hash and sequence). It returns the index of the first failing
// entry together with the error, or (-1, nil) if the whole run verifies.
func VerifyChain(pub ed25519.PublicKey, entries []*Entry) (int, error) {
	if len(entries) == 0 {
		return -1, ErrEmptyChain
	}
	for i, e := range entries {
		if err := VerifyEntrySelfConsistent(pub, e); err != nil {
			return i, err
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if e.Sequence != prev.Sequence+1 {
			return i, ErrSequenceMismatch
		}
		if e.PrevHash != prev.EntryHash {
			return i, ErrPrevHashMismatch
		}
	}
	return -1, nil
}
