// Package wire defines the JSON request/response bodies exchanged between
// an agent client and the Authority over HTTP. Field names and nesting are
// normative: they are exactly what appears on the wire, not an internal
// convenience shape. Every timestamp is RFC 3339 UTC; every hash and
// signature is transmitted as the encoding named in its field suffix
// (_hex or _base64), never raw bytes.
package wire

import "time"

// RegisterAgentRequest is the body of POST /v1/agents.
type RegisterAgentRequest struct {
	AgentID         string            `json:"agent_id"`
	PublicKeyBase64 string            `json:"public_key_base64"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// RegisterAgentResponse is returned on 201 from POST /v1/agents.
type RegisterAgentResponse struct {
	AgentID      string    `json:"agent_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// GetAgentResponse is the body of GET /v1/agents/{agent_id}.
type GetAgentResponse struct {
	AgentID          string            `json:"agent_id"`
	PublicKeyBase64  string            `json:"public_key_base64"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	RegisteredAt     time.Time         `json:"registered_at"`
	ReputationScore  float64           `json:"reputation_score"`
	SuccessfulProofs int64             `json:"successful_proofs"`
	FailedProofs     int64             `json:"failed_proofs"`
	Revoked          bool              `json:"revoked"`
	RevokedAt        *time.Time        `json:"revoked_at,omitempty"`
}

// ErrorBody is the uniform error envelope for non-2xx responses whose
// payload carries structured detail (lease_held, fork, sequence_mismatch).
// Endpoints that need no extra detail send only {"error": "..."}.
type ErrorBody struct {
	Error string `json:"error"`

	// lease_held detail
	HolderSessionID string     `json:"holder_session_id,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`

	// fork detail
	CurrentHead *StateHead `json:"current_head,omitempty"`
}

// AcquireLeaseRequest is the body of POST /v1/leases.
type AcquireLeaseRequest struct {
	AgentID      string    `json:"agent_id"`
	SessionID    string    `json:"session_id"`
	Timestamp    time.Time `json:"timestamp"`
	NonceHex     string    `json:"nonce_hex"`
	TTLSeconds   int64     `json:"ttl_seconds"`
	SignatureHex string    `json:"signature_hex"`
}

// AcquireLeaseResponse is the 200 body of POST /v1/leases.
type AcquireLeaseResponse struct {
	LeaseToken string    `json:"lease_token"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Sequence   int64     `json:"sequence"`
}

// RenewLeaseRequest is the body of PUT /v1/leases/{agent_id}.
type RenewLeaseRequest struct {
	SessionID    string `json:"session_id"`
	CurrentToken string `json:"current_token"`
	TTLSeconds   int64  `json:"ttl_seconds"`
}

// RenewLeaseResponse is the 200 body of PUT /v1/leases/{agent_id}.
type RenewLeaseResponse struct {
	LeaseToken string    `json:"lease_token"`
	ExpiresAt  time.Time `json:"expires_at"`
	Sequence   int64     `json:"sequence"`
}

// ReleaseLeaseRequest is the body of DELETE /v1/leases/{agent_id}.
type ReleaseLeaseRequest struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

// LeaseStatusResponse is the body of GET /v1/leases/{agent_id}.
type LeaseStatusResponse struct {
	AgentID    string     `json:"agent_id"`
	State      string     `json:"state"` // "free", "held", "expired"
	SessionID  string     `json:"session_id,omitempty"`
	AcquiredAt *time.Time `json:"acquired_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Sequence   int64      `json:"sequence,omitempty"`
}

// StateHead names the tip of an agent's state chain.
type StateHead struct {
	Sequence       int64  `json:"sequence"`
	EntryHashBase64 string `json:"entry_hash_base64"`
}

// StateEntry is the canonical over-the-wire shape of a single chain entry.
// Field order here mirrors the canonical signing layout of the statechain
// package's canonicalBytes. The hash and signature are computed from the
// decoded fields, not from this JSON, so the order here does not change
// what is hashed.
type StateEntry struct {
	AgentID              string    `json:"agent_id"`
	Sequence             int64     `json:"sequence"`
	PrevHashBase64       string    `json:"prev_hash_base64"`
	ActionType           string    `json:"action_type"`
	Summary              string    `json:"summary,omitempty"`
	ActionDataHashBase64 string    `json:"action_data_hash_base64"`
	Timestamp            time.Time `json:"timestamp"`
	SessionID            string    `json:"session_id"`
	EntryHashBase64      string    `json:"entry_hash_base64"`
	SignatureHex         string    `json:"signature_hex"`

	// LeaseToken carries the session's current lease token alongside the
	// entry so the Authority can check it holds the slot before accepting
	// the append. Omitted on GET responses, where it is always empty.
	LeaseToken string `json:"lease_token,omitempty"`
}

// AppendStateResponse is the 201 body of POST /v1/state/{agent_id}.
type AppendStateResponse struct {
	Sequence        int64  `json:"sequence"`
	EntryHashBase64 string `json:"entry_hash_base64"`
}

// StateHistoryResponse is the body of GET /v1/state/{agent_id}/history.
type StateHistoryResponse struct {
	Entries []StateEntry `json:"entries"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Total   int64        `json:"total"`
}

// ProofBundle is the flat record an agent submits as proof of live,
// exclusive possession of its identity and lease.
type ProofBundle struct {
	AgentID               string    `json:"agent_id"`
	SessionID             string    `json:"session_id"`
	ChallengeBase64       string    `json:"challenge_base64"`
	ChallengeSignatureHex string    `json:"challenge_signature_hex"`
	StateHead             StateHead `json:"state_head"`
	LeaseToken            string    `json:"lease_token,omitempty"`
	BundleTimestamp       time.Time `json:"bundle_timestamp"`
	BundleSignatureHex    string    `json:"bundle_signature_hex"`
}

// VerifyRequest is the body of POST /v1/verify.
type VerifyRequest struct {
	Proof              ProofBundle `json:"proof"`
	RequireLease       bool        `json:"require_lease,omitempty"`
	MinReputationScore *float64    `json:"min_reputation_score,omitempty"`
}

// VerifyResponse is the 200 body of POST /v1/verify.
type VerifyResponse struct {
	Valid      bool   `json:"valid"`
	AgentID    string `json:"agent_id,omitempty"`
	ReasonCode string `json:"reason_code,omitempty"`
	Offline    bool   `json:"offline,omitempty"`
}
