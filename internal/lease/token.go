package lease

import (
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
)

// Claims is the decoded content of a lease token: agent_id, session_id,
// iat, exp, jti, and seq.
type Claims struct {
	AgentID   string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
	JTI       string
	Seq       int64
}

// TokenCodec mints and parses PASETO v4.local lease tokens under a single
// symmetric key owned by the Authority process.
type TokenCodec struct {
	key paseto.V4SymmetricKey
}

// NewTokenCodec wraps an already-loaded symmetric key.
func NewTokenCodec(key paseto.V4SymmetricKey) *TokenCodec {
	return &TokenCodec{key: key}
}

// GenerateTokenKey produces a fresh random v4.local symmetric key.
func GenerateTokenKey() paseto.V4SymmetricKey {
	return paseto.NewV4SymmetricKey()
}

// TokenKeyFromBytes reconstructs a symmetric key persisted at rest.
func TokenKeyFromBytes(raw []byte) (paseto.V4SymmetricKey, error) {
	return paseto.V4SymmetricKeyFromBytes(raw)
}

// Mint encodes claims as a v4.local envelope.
func (c *TokenCodec) Mint(claims Claims) (string, error) {
	tok := paseto.NewToken()
	tok.SetIssuedAt(claims.IssuedAt)
	tok.SetExpiration(claims.ExpiresAt)
	tok.SetString("agent_id", claims.AgentID)
	tok.SetString("session_id", claims.SessionID)
	tok.SetString("jti", claims.JTI)
	if err := tok.Set("seq", claims.Seq); err != nil {
		return "", err
	}
	return tok.V4Encrypt(c.key, nil), nil
}

// Parse decrypts and decodes a v4.local envelope. It does not itself reject
// an expired token — expiry is the Authority's lease Record, not the
// token's own exp claim — it only rejects malformed or mis-keyed envelopes.
func (c *TokenCodec) Parse(token string) (*Claims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parsed, err := parser.ParseV4Local(c.key, token, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	agentID, err := parsed.GetString("agent_id")
	if err != nil {
		return nil, ErrInvalidToken
	}
	sessionID, err := parsed.GetString("session_id")
	if err != nil {
		return nil, ErrInvalidToken
	}
	jti, err := parsed.GetString("jti")
	if err != nil {
		return nil, ErrInvalidToken
	}
	var seq int64
	if err := parsed.Get("seq", &seq); err != nil {
		return nil, ErrInvalidToken
	}
	iat, err := parsed.GetIssuedAt()
	if err != nil {
		return nil, ErrInvalidToken
	}
	exp, err := parsed.GetExpiration()
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &Claims{
		AgentID:   agentID,
		SessionID: sessionID,
		IssuedAt:  iat,
		ExpiresAt: exp,
		JTI:       jti,
		Seq:       seq,
	}, nil
}
