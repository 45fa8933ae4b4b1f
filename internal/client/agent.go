package client

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/sigaid/sigaid-core/internal/identity"
	"github.com/sigaid/sigaid-core/internal/lease"
	"github.com/sigaid/sigaid-core/internal/proof"
	"github.com/sigaid/sigaid-core/internal/statechain"
	"github.com/sigaid/sigaid-core/internal/wire"
)

// Agent is the embedder-facing handle on one signed identity: it owns the
// key pair, the lease client, and the local state-chain builder, and
// exposes the handful of operations an embedded agent actually calls
// (register, hold a lease, log an action, prove liveness) without
// requiring the caller to know about wire encoding or retry policy.
type Agent struct {
	kp      *identity.KeyPair
	agentID identity.AgentID

	http    *HTTPClient
	leases  *lease.Client
	builder *statechain.Builder

	cfg Config
}

// NewAgent wires a key pair to an Authority reachable at cfg.AuthorityURL,
// starting a fresh state chain at its empty head. Use ResumeAgent instead
// when the agent has prior entries.
func NewAgent(kp *identity.KeyPair, cfg Config) (*Agent, error) {
	return newAgent(kp, cfg, statechain.EmptyHead)
}

// ResumeAgent wires a key pair to an Authority, resuming the local
// state-chain builder at a previously known head (e.g. fetched from the
// Authority via HTTPClient.StateHead or loaded from local storage).
func ResumeAgent(kp *identity.KeyPair, cfg Config, head statechain.Head) (*Agent, error) {
	return newAgent(kp, cfg, head)
}

func newAgent(kp *identity.KeyPair, cfg Config, head statechain.Head) (*Agent, error) {
	agentID, err := kp.AgentID()
	if err != nil {
		return nil, err
	}
	httpClient := NewHTTPClient(cfg)
	leaseClient, err := lease.NewClient(kp, httpClient)
	if err != nil {
		return nil, err
	}
	builder, err := statechain.Resume(kp, head)
	if err != nil {
		return nil, err
	}
	return &Agent{
		kp:      kp,
		agentID: agentID,
		http:    httpClient,
		leases:  leaseClient,
		builder: builder,
		cfg:     cfg,
	}, nil
}

// AgentID returns this agent's printable identifier.
func (a *Agent) AgentID() identity.AgentID {
	return a.agentID
}

// Register announces this agent's identity and optional metadata to the
// Authority. It must succeed before any lease or state-chain call will.
func (a *Agent) Register(ctx context.Context, metadata map[string]string) error {
	req := wire.RegisterAgentRequest{
		AgentID:         string(a.agentID),
		PublicKeyBase64: base64.StdEncoding.EncodeToString(a.kp.PublicKey()),
		Metadata:        metadata,
	}
	_, err := a.http.do(ctx, http.MethodPost, "/v1/agents", req, nil)
	return err
}

// AcquireLease obtains the exclusive lease slot for ttl, optionally
// starting background auto-renewal per cfg.AutoRenew.
func (a *Agent) AcquireLease(ctx context.Context, ttl time.Duration) error {
	if err := a.leases.Acquire(ctx, ttl); err != nil {
		return err
	}
	if a.cfg.AutoRenew {
		a.leases.StartAutoRenew(ttl)
	}
	return nil
}

// AcquireLeaseWait is AcquireLease but retries with backoff while the slot
// is held by another session, until ctx's deadline.
func (a *Agent) AcquireLeaseWait(ctx context.Context, ttl time.Duration) error {
	if err := a.leases.AcquireWait(ctx, ttl); err != nil {
		return err
	}
	if a.cfg.AutoRenew {
		a.leases.StartAutoRenew(ttl)
	}
	return nil
}

// ReleaseLease stops auto-renewal (if running) and releases the lease.
func (a *Agent) ReleaseLease(ctx context.Context) error {
	a.leases.StopAutoRenew()
	return a.leases.Release(ctx)
}

// LeaseLost returns the channel that fires once if background auto-renewal
// determines the held lease has been lost.
func (a *Agent) LeaseLost() <-chan error {
	return a.leases.Lost()
}

// OnLeaseRenewed registers fn to be called after every successful
// background lease renewal, as a liveness signal for the embedder. Call
// it before AcquireLease/AcquireLeaseWait.
func (a *Agent) OnLeaseRenewed(fn func(lease.AcquireResult)) {
	a.leases.OnRenew(fn)
}

// AppendAction signs and submits one state-chain entry, advancing this
// agent's local head on success. It requires an actively held lease.
func (a *Agent) AppendAction(ctx context.Context, actionType statechain.ActionType, summary string, payload []byte) (statechain.Head, error) {
	token, held := a.leases.CurrentToken()
	if !held {
		return statechain.Head{}, lease.ErrNoActiveLease
	}

	entry, err := a.builder.Append(actionType, summary, payload, a.leases.SessionID(), time.Now())
	if err != nil {
		return statechain.Head{}, err
	}

	head, err := a.http.AppendState(ctx, entry, token)
	if err != nil {
		a.builder.Rollback(statechain.Head{Sequence: entry.Sequence - 1, EntryHash: entry.PrevHash})
		return statechain.Head{}, err
	}
	return head, nil
}

// Prove builds and submits a liveness proof bundle in response to a
// verifier-issued challenge, returning the Authority's verdict.
func (a *Agent) Prove(ctx context.Context, challenge []byte, requireLease bool, minReputation *float64) (proof.Result, error) {
	token, _ := a.leases.CurrentToken()
	bundle, err := proof.Construct(a.kp, a.leases.SessionID(), token, a.builder.Head(), challenge, time.Now())
	if err != nil {
		return proof.Result{}, err
	}
	return a.http.Verify(ctx, bundle, requireLease, minReputation)
}

// Close releases resources held by the agent's lease client and zeroes its
// key material. It does not release a held lease; call ReleaseLease first
// if that is the intent.
func (a *Agent) Close() {
	a.leases.StopAutoRenew()
	a.kp.Close()
}
