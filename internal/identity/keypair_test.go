package identity

import (
	"bytes"
	"testing"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
)

func seedOf(b byte) []byte {
	seed := make([]byte, sigcrypto.SeedSize)
	for i := range seed {
		seed[i] = b
	}
	return seed
}

func TestFromSeedDeterministic(t *testing.T) {
	seed := seedOf(0x01)

	k1, err := FromSeed(seed)
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	k2, err := FromSeed(seed)
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}

	if !bytes.Equal(k1.PublicKey(), k2.PublicKey()) {
		t.Fatal("same seed must derive the same public key")
	}

	id1, err := k1.AgentID()
	if err != nil {
		t.Fatalf("AgentID: %v", err)
	}
	id2, err := k2.AgentID()
	if err != nil {
		t.Fatalf("AgentID: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("same seed must derive the same agent id: %q != %q", id1, id2)
	}
	if !Validate(id1.String()) {
		t.Fatalf("derived agent id must validate: %q", id1)
	}
}

func TestFromSeedRejectsWrongLength(t *testing.T) {
	if _, err := FromSeed(make([]byte, 16)); err == nil {
		t.Fatal("expected error for short seed")
	}
}

func TestGenerateProducesDistinctKeypairs(t *testing.T) {
	k1, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	k2, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if bytes.Equal(k1.PublicKey(), k2.PublicKey()) {
		t.Fatal("two independently generated keypairs should not collide")
	}
}

func TestSignVerifyRoundTripUnderIdentityDomain(t *testing.T) {
	kp, err := FromSeed(seedOf(0x01))
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	msg := []byte("hello")
	sig, err := kp.Sign(sigcrypto.DomainIdentity, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != sigcrypto.SignatureSize {
		t.Fatalf("unexpected signature length: %d", len(sig))
	}
	if !kp.Verify(sigcrypto.DomainIdentity, msg, sig) {
		t.Fatal("expected self-verification to succeed")
	}
	if !sigcrypto.Verify(kp.PublicKey(), sigcrypto.DomainIdentity, msg, sig) {
		t.Fatal("expected external verification against the public key to succeed")
	}
}

func TestSignatureDeterministicForFixedSeedAndMessage(t *testing.T) {
	kp, err := FromSeed(seedOf(0x01))
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	msg := []byte("hello")
	sig1, err := kp.Sign(sigcrypto.DomainIdentity, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig2, err := kp.Sign(sigcrypto.DomainIdentity, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !bytes.Equal(sig1, sig2) {
		t.Fatal("ed25519 signatures are deterministic for a fixed key and message")
	}
}

func TestCloseZeroizesSeedAndBlocksFurtherUse(t *testing.T) {
	kp, err := FromSeed(seedOf(0x01))
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	kp.Close()
	kp.Close() // must be idempotent

	if _, err := kp.Seed(); err != ErrClosed {
		t.Fatalf("expected ErrClosed from Seed, got %v", err)
	}
	if _, err := kp.Sign(sigcrypto.DomainIdentity, []byte("x")); err != ErrClosed {
		t.Fatalf("expected ErrClosed from Sign, got %v", err)
	}
}

func TestSeedCopyIsIndependentOfInternalState(t *testing.T) {
	original := seedOf(0x01)
	kp, err := FromSeed(original)
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	got, err := kp.Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	got[0] ^= 0xFF
	again, err := kp.Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if !bytes.Equal(again, original) {
		t.Fatal("mutating a returned seed copy must not affect the keypair's internal state")
	}
}
