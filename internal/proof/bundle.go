package proof

import (
	"encoding/binary"
	"time"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
	"github.com/sigaid/sigaid-core/internal/identity"
	"github.com/sigaid/sigaid-core/internal/statechain"
)

// Bundle is the flat record an agent submits as proof of live, exclusive
// possession of its identity and lease.
type Bundle struct {
	AgentID            identity.AgentID
	SessionID          string
	LeaseToken         string
	StateHead          statechain.Head
	Challenge          []byte
	ChallengeSignature []byte
	BundleTimestamp    time.Time
	BundleSignature    []byte
}

func canonicalBundleBytes(agentID identity.AgentID, leaseToken string, head statechain.Head, challenge, challengeSig []byte, ts time.Time) []byte {
	var headBuf [40]byte
	binary.BigEndian.PutUint64(headBuf[:8], uint64(head.Sequence))
	copy(headBuf[8:], head.EntryHash[:])

	tsBytes := []byte(ts.UTC().Format(time.RFC3339Nano))

	parts := [][]byte{
		[]byte(agentID),
		[]byte(leaseToken),
		headBuf[:],
		challenge,
		challengeSig,
		tsBytes,
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

// Construct builds and signs a proof bundle on the agent side. The caller
// supplies the challenge it was issued, its current lease token, and its
// current state head.
func Construct(kp *identity.KeyPair, sessionID, leaseToken string, head statechain.Head, challenge []byte, at time.Time) (*Bundle, error) {
	if err := ValidateChallenge(challenge); err != nil {
		return nil, err
	}
	agentID, err := kp.AgentID()
	if err != nil {
		return nil, err
	}

	challengeSig, err := kp.Sign(sigcrypto.DomainChallenge, challenge)
	if err != nil {
		return nil, err
	}

	ts := at.UTC()
	canonical := canonicalBundleBytes(agentID, leaseToken, head, challenge, challengeSig, ts)
	bundleSig, err := kp.Sign(sigcrypto.DomainProof, canonical)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		AgentID:            agentID,
		SessionID:          sessionID,
		LeaseToken:         leaseToken,
		StateHead:          head,
		Challenge:          challenge,
		ChallengeSignature: challengeSig,
		BundleTimestamp:    ts,
		BundleSignature:    bundleSig,
	}, nil
}
