package identity

import (
	"crypto/ed25519"
	"strings"
	"testing"
)

func pubkeyFromByte(b byte) ed25519.PublicKey {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = b
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey)
}

func TestNewAgentIDHasPrefixAndRoundTrips(t *testing.T) {
	pub := pubkeyFromByte(0x01)
	id, err := NewAgentID(pub)
	if err != nil {
		t.Fatalf("NewAgentID: %v", err)
	}
	if !strings.HasPrefix(string(id), AgentIDPrefix) {
		t.Fatalf("expected prefix %q, got %q", AgentIDPrefix, id)
	}
	got, err := id.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	if !got.Equal(pub) {
		t.Fatal("round-tripped public key does not match original")
	}
}

func TestAgentIDDeterministic(t *testing.T) {
	pub := pubkeyFromByte(0x02)
	id1, _ := NewAgentID(pub)
	id2, _ := NewAgentID(pub)
	if id1 != id2 {
		t.Fatalf("AgentID encoding must be deterministic: %q != %q", id1, id2)
	}
}

func TestParseAgentIDRejectsBadChecksum(t *testing.T) {
	pub := pubkeyFromByte(0x03)
	id, _ := NewAgentID(pub)
	s := string(id)
	// flip the last character of the base58 body to break the checksum.
	mutated := []byte(s)
	idx := len(mutated) - 1
	if mutated[idx] == 'a' {
		mutated[idx] = 'b'
	} else {
		mutated[idx] = 'a'
	}
	if Validate(string(mutated)) {
		t.Fatal("mutated agent id should not validate")
	}
}

func TestParseAgentIDRejectsMissingPrefix(t *testing.T) {
	pub := pubkeyFromByte(0x04)
	id, _ := NewAgentID(pub)
	withoutPrefix := strings.TrimPrefix(string(id), AgentIDPrefix)
	if Validate(withoutPrefix) {
		t.Fatal("agent id without prefix should not validate")
	}
}

func TestParseAgentIDRejectsWrongLength(t *testing.T) {
	if Validate(AgentIDPrefix + "1") {
		t.Fatal("too-short agent id should not validate")
	}
}

func TestParseAgentIDRejectsGarbage(t *testing.T) {
	if Validate("not-an-agent-id-at-all") {
		t.Fatal("garbage input should not validate")
	}
	if Validate("") {
		t.Fatal("empty string should not validate")
	}
}

func TestAgentIDShort(t *testing.T) {
	pub := pubkeyFromByte(0x05)
	id, _ := NewAgentID(pub)
	short := id.Short()
	if !strings.HasPrefix(short, AgentIDPrefix) {
		t.Fatalf("short form should retain prefix, got %q", short)
	}
	if !strings.HasSuffix(short, "...") {
		t.Fatalf("short form should be truncated, got %q", short)
	}
}

func TestNewAgentIDRejectsWrongKeySize(t *testing.T) {
	if _, err := NewAgentID(ed25519.PublicKey(make([]byte, 16))); err != ErrInvalidAgentID {
		t.Fatalf("expected ErrInvalidAgentID, got %v", err)
	}
}
