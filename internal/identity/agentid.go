package identity

import (
	"crypto/ed25519"
	"errors"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/sigaid/sigaid-core/internal/crypto"
)

// AgentIDPrefix is the literal textual prefix every AgentID carries.
const AgentIDPrefix = "aid_"

const checksumSize = 4

var (
	ErrInvalidAgentID = errors.New("identity: invalid agent id")
)

// AgentID is the printable identifier derived from an Ed25519 public key:
// aid_<base58(pubkey || checksum)>, where checksum is the first 4 bytes of
// BLAKE3(pubkey).
type AgentID string

// NewAgentID encodes pub as an AgentID.
func NewAgentID(pub ed25519.PublicKey) (AgentID, error) {
	if len(pub) != crypto.PublicKeySize {
		return "", ErrInvalidAgentID
	}
	sum := crypto.Hash(pub)
	payload := make([]byte, 0, crypto.PublicKeySize+checksumSize)
	payload = append(payload, pub...)
	payload = append(payload, sum[:checksumSize]...)
	return AgentID(AgentIDPrefix + base58.Encode(payload)), nil
}

// ParseAgentID validates s and returns the embedded public key. It rejects
// any string whose checksum disagrees, whose length differs, whose
// alphabet is violated, whose prefix is absent, or whose decoded key is not
// a valid Ed25519 public point size.
func ParseAgentID(s string) (ed25519.PublicKey, error) {
	if !strings.HasPrefix(s, AgentIDPrefix) {
		return nil, ErrInvalidAgentID
	}
	encoded := s[len(AgentIDPrefix):]
	if encoded == "" {
		return nil, ErrInvalidAgentID
	}
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return nil, ErrInvalidAgentID
	}
	if len(decoded) != crypto.PublicKeySize+checksumSize {
		return nil, ErrInvalidAgentID
	}
	pub := decoded[:crypto.PublicKeySize]
	checksum := decoded[crypto.PublicKeySize:]
	sum := crypto.Hash(pub)
	if !crypto.CTEqual(checksum, sum[:checksumSize]) {
		return nil, ErrInvalidAgentID
	}
	return ed25519.PublicKey(pub), nil
}

// Validate reports whether s is a structurally and checksum-valid AgentID.
func Validate(s string) bool {
	_, err := ParseAgentID(s)
	return err == nil
}

// PublicKey decodes the AgentID's embedded public key.
func (a AgentID) PublicKey() (ed25519.PublicKey, error) {
	return ParseAgentID(string(a))
}

// String returns the AgentID's textual form.
func (a AgentID) String() string {
	return string(a)
}

// Short returns a truncated form suitable for logs: "aid_" plus the first
// eight characters of the encoded body, followed by an ellipsis.
func (a AgentID) Short() string {
	s := string(a)
	body := strings.TrimPrefix(s, AgentIDPrefix)
	if len(body) <= 8 {
		return s
	}
	return AgentIDPrefix + body[:8] + "..."
}
