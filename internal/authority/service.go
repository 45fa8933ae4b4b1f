package authority

import (
	"context"
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/sigaid/sigaid-core/internal/identity"
	"github.com/sigaid/sigaid-core/internal/lease"
	"github.com/sigaid/sigaid-core/internal/proof"
	"github.com/sigaid/sigaid-core/internal/statechain"
)

// Service wires the identity registry, lease authority, state chain store,
// and proof verification into the single process-wide object the HTTP
// layer dispatches against. Its lifetime is the Authority process's
// lifetime; there is no hidden global singleton.
type Service struct {
	Registry *Registry
	Leases   *lease.Authority
	Chain    *statechain.Store
	cfg      Config
}

// NewService builds a fully wired Service from cfg. tokenCodec is supplied
// by the caller so its key can be persisted/restored via the keystore.
func NewService(cfg Config, tokenCodec *lease.TokenCodec) *Service {
	reg := NewRegistry()
	leases := lease.NewAuthority(reg, tokenCodec, cfg.ClockSkew)
	chain := statechain.NewStore(reg, &leaseCheckerAdapter{leases: leases})
	return &Service{Registry: reg, Leases: leases, Chain: chain, cfg: cfg}
}

// leaseCheckerAdapter satisfies statechain.LeaseChecker (error-only) over
// lease.Authority.RequireHeld (which additionally returns the Record) —
// the two packages avoid importing each other's concrete types directly,
// so this adapter lives in the package that is allowed to depend on both.
type leaseCheckerAdapter struct {
	leases *lease.Authority
}

func (a *leaseCheckerAdapter) RequireHeld(agentID identity.AgentID, sessionID, token string) error {
	_, err := a.leases.RequireHeld(agentID, sessionID, token)
	return err
}

// authorityClientAdapter satisfies proof.AuthorityClient over the same
// Service, so online proof verification can be wired without proof.go
// importing lease or statechain directly.
type authorityClientAdapter struct {
	svc *Service
}

func (a *authorityClientAdapter) CheckLease(ctx context.Context, agentID identity.AgentID, sessionID, token string) error {
	_, err := a.svc.Leases.RequireHeld(agentID, sessionID, token)
	return err
}

func (a *authorityClientAdapter) CurrentHead(ctx context.Context, agentID identity.AgentID) (statechain.Head, error) {
	return a.svc.Chain.Head(agentID), nil
}

// AuthorityClient exposes this Service as a proof.AuthorityClient, for use
// by both the HTTP verify handler and any in-process embedder.
func (svc *Service) AuthorityClient() proof.AuthorityClient {
	return &authorityClientAdapter{svc: svc}
}

// RegisterAgent validates and admits a new agent_id/public_key pair,
// rejecting any mismatch between the claimed agent_id and the key it
// actually encodes.
func (svc *Service) RegisterAgent(agentID identity.AgentID, pub ed25519.PublicKey, metadata map[string]string) (*AgentRecord, error) {
	decoded, err := agentID.PublicKey()
	if err != nil {
		return nil, identity.ErrInvalidAgentID
	}
	if !ed25519PublicKeyEqual(decoded, pub) {
		return nil, identity.ErrInvalidAgentID
	}
	return svc.Registry.Register(agentID, pub, metadata)
}

func ed25519PublicKeyEqual(a, b ed25519.PublicKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AppendState appends e to agentID's chain after checking the lease, and
// feeds the registry's fork-incident counter on rejection.
func (svc *Service) AppendState(ctx context.Context, sessionID, token string, e *statechain.Entry) (statechain.Head, error) {
	head, err := svc.Chain.Append(ctx, sessionID, token, e)
	var forkErr *statechain.ForkError
	if errors.As(err, &forkErr) {
		svc.Registry.RecordForkIncident(e.AgentID)
	}
	return head, err
}

// Verify runs online proof verification and records the outcome against
// the agent's reputation counters. policy.MinReputation is enforced here
// rather than inside proof.Verify, since that package has no access to the
// registry's reputation counters; it is checked after the bundle itself is
// found valid, so a bad signature is never masked by a reputation reason.
func (svc *Service) Verify(ctx context.Context, issuedChallenge []byte, b *proof.Bundle, policy proof.Policy) proof.Result {
	result := proof.Verify(ctx, svc.AuthorityClient(), issuedChallenge, b, policy, time.Now())
	if !result.Valid {
		return result
	}
	if policy.MinReputation != nil {
		rec, err := svc.Registry.Get(b.AgentID)
		if err != nil {
			return proof.Result{Valid: false, Reason: proof.ReasonAuthorityUnavailable, AgentID: b.AgentID}
		}
		if rec.Reputation.Score() < *policy.MinReputation {
			return proof.Result{Valid: false, Reason: proof.ReasonReputationTooLow, AgentID: b.AgentID}
		}
	}
	svc.Registry.RecordSuccess(b.AgentID)
	return result
}

