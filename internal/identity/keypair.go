package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
)

// ErrClosed is returned by any operation attempted on a KeyPair after
// Close has zeroized its secret material.
var ErrClosed = errors.New("identity: keypair closed")

// KeyPair owns an Ed25519 seed and its derived public key. Secret material
// lives in the seed and priv fields, both zeroized by Close; a KeyPair must
// never be copied by value once constructed.
type KeyPair struct {
	seed   [sigcrypto.SeedSize]byte
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	closed bool
}

// Generate creates a fresh KeyPair from OS CSPRNG output. It fails only if
// the CSPRNG itself fails.
func Generate() (*KeyPair, error) {
	var seed [sigcrypto.SeedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, sigcrypto.ErrCrypto
	}
	return FromSeed(seed[:])
}

// FromSeed deterministically derives a KeyPair from an exact 32-byte seed.
func FromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != sigcrypto.SeedSize {
		return nil, errors.New("identity: seed must be 32 bytes")
	}
	kp := &KeyPair{}
	copy(kp.seed[:], seed)
	kp.priv = ed25519.NewKeyFromSeed(kp.seed[:])
	kp.pub = kp.priv.Public().(ed25519.PublicKey)
	return kp, nil
}

// PublicKey returns the keypair's Ed25519 public key.
func (k *KeyPair) PublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), k.pub...)
}

// AgentID derives the printable AgentID for this keypair's public key.
func (k *KeyPair) AgentID() (AgentID, error) {
	return NewAgentID(k.pub)
}

// Sign produces a domain-separated Ed25519 signature. Returns ErrClosed if
// the keypair's secret material has already been zeroized.
func (k *KeyPair) Sign(domain sigcrypto.Domain, message []byte) ([]byte, error) {
	if k.closed {
		return nil, ErrClosed
	}
	return sigcrypto.Sign(k.priv, domain, message)
}

// Verify checks sig against this keypair's own public key. Provided as a
// convenience for self-verification paths; general verification should use
// sigcrypto.Verify against a peer's public key directly.
func (k *KeyPair) Verify(domain sigcrypto.Domain, message, sig []byte) bool {
	return sigcrypto.Verify(k.pub, domain, message, sig)
}

// Seed returns a copy of the 32-byte seed. Callers must not retain it
// beyond the immediate use and should avoid logging it.
func (k *KeyPair) Seed() ([]byte, error) {
	if k.closed {
		return nil, ErrClosed
	}
	out := make([]byte, sigcrypto.SeedSize)
	copy(out, k.seed[:])
	return out, nil
}

// Close zeroizes the seed and private key material. Safe to call more than
// once.
func (k *KeyPair) Close() {
	if k.closed {
		return
	}
	zero(k.seed[:])
	zero(k.priv)
	k.closed = true
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
