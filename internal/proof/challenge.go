// Package proof implements construction and verification of liveness proof
// bundles: an agent-signed attestation, tied to a service-issued challenge,
// that it currently holds both its private key and an exclusive lease.
package proof

import (
	"crypto/rand"
	"errors"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
)

// ChallengeSize is the length NewChallenge generates by default. A verifier
// may issue any challenge between MinChallengeSize and MaxChallengeSize
// bytes; this is only this system's own choice when it acts as the
// challenge source itself.
const ChallengeSize = 32

// MinChallengeSize and MaxChallengeSize bound the opaque challenge a
// verifier may supply.
const (
	MinChallengeSize = 16
	MaxChallengeSize = 256
)

// ErrInvalidChallengeLength is returned when a challenge falls outside
// [MinChallengeSize, MaxChallengeSize].
var ErrInvalidChallengeLength = errors.New("proof: invalid challenge length")

// NewChallenge generates a fresh random challenge for a verifier to issue
// to an agent.
func NewChallenge() ([]byte, error) {
	c := make([]byte, ChallengeSize)
	if _, err := rand.Read(c); err != nil {
		return nil, sigcrypto.ErrCrypto
	}
	return c, nil
}

// ValidateChallenge checks that challenge's length is one a verifier could
// legitimately have issued; it does not and cannot check that the verifier
// actually issued it — that comparison happens in Verify, against the
// challenge the caller supplies as ground truth.
func ValidateChallenge(challenge []byte) error {
	if len(challenge) < MinChallengeSize || len(challenge) > MaxChallengeSize {
		return ErrInvalidChallengeLength
	}
	return nil
}
