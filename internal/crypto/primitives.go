// Package crypto implements the domain-separated signing, hashing, key
// derivation, and authenticated encryption primitives shared by every other
// package in this module. Nothing here branches on why a cryptographic
// check failed; verification functions return a plain bool or an opaque
// error so that callers cannot build a decryption oracle out of error
// messages.
package crypto

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"lukechampine.com/blake3"
)

// Domain is a closed set of signing-context labels. Every Sign/Verify call
// must name one of these; there is no escape hatch for ad hoc domains,
// which is what makes domain separation actually separate the protocols.
type Domain string

const (
	DomainIdentity  Domain = "agent.identity.v1"
	DomainState     Domain = "agent.state.v1"
	DomainLease     Domain = "agent.lease.v1"
	DomainProof     Domain = "agent.proof.v1"
	DomainChallenge Domain = "agent.challenge.v1"
)

var validDomains = map[Domain]struct{}{
	DomainIdentity:  {},
	DomainState:     {},
	DomainLease:     {},
	DomainProof:     {},
	DomainChallenge: {},
}

// ErrUnknownDomain is returned by Sign/Verify when given a label outside the
// closed set above.
var ErrUnknownDomain = errors.New("crypto: unknown signing domain")

// ErrCrypto is the single opaque failure kind surfaced for any
// cryptographic operation that fails; callers never learn more than "it
// didn't work".
var ErrCrypto = errors.New("crypto: operation failed")

const (
	HashSize      = 32
	SignatureSize = ed25519.SignatureSize
	SeedSize      = ed25519.SeedSize
	PublicKeySize = ed25519.PublicKeySize
)

// taggedMessage builds len16(domain) || domain || message, the fixed
// wire layout every signature in this system is computed over.
func taggedMessage(domain Domain, message []byte) ([]byte, error) {
	if _, ok := validDomains[domain]; !ok {
		return nil, ErrUnknownDomain
	}
	d := []byte(domain)
	if len(d) > 0xFFFF {
		return nil, ErrUnknownDomain
	}
	out := make([]byte, 0, 2+len(d)+len(message))
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(d)))
	out = append(out, lenBuf[:]...)
	out = append(out, d...)
	out = append(out, message...)
	return out, nil
}

// Sign produces a raw Ed25519 signature over the domain-tagged message.
func Sign(priv ed25519.PrivateKey, domain Domain, message []byte) ([]byte, error) {
	tagged, err := taggedMessage(domain, message)
	if err != nil {
		return nil, err
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrCrypto
	}
	return ed25519.Sign(priv, tagged), nil
}

// Verify reports whether sig is a valid domain-tagged signature by pub over
// message. It never panics on malformed input and never reveals which
// precondition failed.
func Verify(pub ed25519.PublicKey, domain Domain, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	tagged, err := taggedMessage(domain, message)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, tagged, sig)
}

// Hash returns the BLAKE3-256 digest of the concatenation of parts. Callers
// are responsible for using fixed-layout, length-prefixed encodings so the
// concatenation is unambiguous.
func Hash(parts ...[]byte) [32]byte {
	h := blake3.New(32, nil)
	for _, p := range parts {
		h.Write(p) //nolint:errcheck // hash.Hash.Write never errors
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HashLenPrefixed hashes parts the same way Hash does but additionally
// prefixes each part with its big-endian uint32 length, removing any
// ambiguity from variable-length fields without a fixed layout.
func HashLenPrefixed(parts ...[]byte) [32]byte {
	h := blake3.New(32, nil)
	var lenBuf [4]byte
	for _, p := range parts {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		h.Write(lenBuf[:]) //nolint:errcheck
		h.Write(p)         //nolint:errcheck
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HKDFSHA256 expands ikm into length pseudorandom bytes using HMAC-SHA256
// based HKDF, tagged with salt and info.
func HKDFSHA256(ikm, salt, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, ErrCrypto
	}
	return out, nil
}

// AEADSealXChaCha20Poly1305 seals plaintext under key (32 bytes), generating
// a fresh random 24-byte nonce, and returns nonce||ciphertext.
func AEADSealXChaCha20Poly1305(key, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrCrypto
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, ErrCrypto
	}
	sealed := aead.Seal(nil, nonce, plaintext, additionalData)
	return append(nonce, sealed...), nil
}

// AEADOpenXChaCha20Poly1305 reverses AEADSealXChaCha20Poly1305. Any
// tampering anywhere in sealed, including a single flipped bit, causes this
// to fail with the opaque ErrCrypto.
func AEADOpenXChaCha20Poly1305(key, sealed, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrCrypto
	}
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, ErrCrypto
	}
	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrCrypto
	}
	return plaintext, nil
}

// CTEqual performs a constant-time comparison of two byte slices, used on
// every MAC/signature-adjacent compare path that doesn't already go through
// ed25519.Verify or an AEAD open.
func CTEqual(a, b []byte) bool {
	if len(a) != len(b) {
		// hmac.Equal already returns false for mismatched lengths without
		// timing on the mismatch, but we keep the length check explicit to
		// document the invariant.
		return false
	}
	return hmac.Equal(a, b)
}
