package authority

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sigaid/sigaid-core/internal/identity"
)

// maxMetadataBytes caps the serialized size of an agent's registration
// metadata, matching the original's flat-column usage without the
// product-specific fields that belong to the excluded dashboard.
const maxMetadataBytes = 4096

var (
	ErrAlreadyRegistered = errors.New("authority: agent already registered")
	ErrAgentNotFound     = errors.New("authority: agent not found")
	ErrAgentRevoked      = errors.New("authority: agent key revoked")
	ErrMetadataTooLarge  = errors.New("authority: metadata exceeds size limit")
)

// Reputation is a simple monotonic counter pair: successful proof
// verifications against chain fork incidents.
// Decay/weighting is explicitly an ops-layer concern, not tracked here.
type Reputation struct {
	Successes     uint64
	ForkIncidents uint64
}

// Score returns a value in [0, 1]: the fraction of recorded outcomes that
// were successful verifications. An agent with no recorded outcomes scores
// 1.0 (neutral, not yet penalized).
func (r Reputation) Score() float64 {
	total := r.Successes + r.ForkIncidents
	if total == 0 {
		return 1.0
	}
	return float64(r.Successes) / float64(total)
}

// AgentRecord is everything the Authority knows about a registered agent.
type AgentRecord struct {
	AgentID      identity.AgentID
	PublicKey    ed25519.PublicKey
	Metadata     map[string]string
	Revoked      bool
	RegisteredAt time.Time
	Reputation   Reputation
}

// Registry holds every agent the Authority has ever registered, guarded by
// a single RWMutex: registration and revocation are rare writes, lookups
// are the hot path.
type Registry struct {
	mu     sync.RWMutex
	agents map[identity.AgentID]*AgentRecord
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[identity.AgentID]*AgentRecord)}
}

// Register admits a new agent_id/public_key pair. It is a hard error to
// re-register an agent_id that already exists, even with the same key:
// the wire contract documents 409 on a present agent_id.
func (reg *Registry) Register(agentID identity.AgentID, pub ed25519.PublicKey, metadata map[string]string) (*AgentRecord, error) {
	if err := validateMetadata(metadata); err != nil {
		return nil, err
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.agents[agentID]; exists {
		return nil, ErrAlreadyRegistered
	}
	rec := &AgentRecord{
		AgentID:      agentID,
		PublicKey:    append(ed25519.PublicKey{}, pub...),
		Metadata:     metadata,
		RegisteredAt: time.Now().UTC(),
	}
	reg.agents[agentID] = rec
	return rec, nil
}

// Get returns a defensive copy of the agent's record.
func (reg *Registry) Get(agentID identity.AgentID) (*AgentRecord, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rec, ok := reg.agents[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return cloneAgentRecord(rec), nil
}

// LookupPublicKey implements the lease/statechain PublicKeyLookup
// interfaces: it answers false for an agent that is unknown OR revoked, so
// a revoked agent fails closed exactly like an unregistered one.
func (reg *Registry) LookupPublicKey(agentID identity.AgentID) (ed25519.PublicKey, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rec, ok := reg.agents[agentID]
	if !ok || rec.Revoked {
		return nil, false
	}
	return append(ed25519.PublicKey{}, rec.PublicKey...), true
}

// Revoke marks an agent's key dead: LookupPublicKey answers false from then
// on, so lease acquires and state appends for that agent_id fail. Renewing
// or releasing a lease that is already held does not consult the registry.
// There is no replacement key, matching the Open Question's resolution in
// favor of revocation over rotation.
func (reg *Registry) Revoke(agentID identity.AgentID) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rec, ok := reg.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	rec.Revoked = true
	return nil
}

// RecordSuccess increments the reputation success counter.
func (reg *Registry) RecordSuccess(agentID identity.AgentID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if rec, ok := reg.agents[agentID]; ok {
		rec.Reputation.Successes++
	}
}

// RecordForkIncident increments the fork-incident counter. Service.AppendState
// calls this whenever the state chain store rejects an append as a fork.
func (reg *Registry) RecordForkIncident(agentID identity.AgentID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if rec, ok := reg.agents[agentID]; ok {
		rec.Reputation.ForkIncidents++
	}
}

func cloneAgentRecord(rec *AgentRecord) *AgentRecord {
	metaCopy := make(map[string]string, len(rec.Metadata))
	for k, v := range rec.Metadata {
		metaCopy[k] = v
	}
	return &AgentRecord{
		AgentID:      rec.AgentID,
		PublicKey:    append(ed25519.PublicKey{}, rec.PublicKey...),
		Metadata:     metaCopy,
		Revoked:      rec.Revoked,
		RegisteredAt: rec.RegisteredAt,
		Reputation:   rec.Reputation,
	}
}

func validateMetadata(metadata map[string]string) error {
	size := 0
	for k, v := range metadata {
		size += len(k) + len(v)
		if size > maxMetadataBytes {
			return fmt.Errorf("%w: %d bytes", ErrMetadataTooLarge, size)
		}
	}
	return nil
}
