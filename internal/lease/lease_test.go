package lease

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sigaid/sigaid-core/internal/identity"
)

// fakeRegistry implements PublicKeyLookup over an in-memory set of
// registered keypairs, standing in for the Authority's real agent
// registry for these protocol-level tests.
type fakeRegistry struct {
	mu   sync.Mutex
	keys map[identity.AgentID]ed25519.PublicKey
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{keys: make(map[identity.AgentID]ed25519.PublicKey)}
}

func (r *fakeRegistry) register(kp *identity.KeyPair) identity.AgentID {
	id, err := kp.AgentID()
	if err != nil {
		panic(err)
	}
	r.mu.Lock()
	r.keys[id] = kp.PublicKey()
	r.mu.Unlock()
	return id
}

func (r *fakeRegistry) LookupPublicKey(agentID identity.AgentID) (ed25519.PublicKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pub, ok := r.keys[agentID]
	return pub, ok
}

// directTransport calls straight into an in-process Authority, letting the
// lease protocol be exercised without any HTTP plumbing.
type directTransport struct {
	authority *Authority
}

func (d *directTransport) Acquire(ctx context.Context, req AcquireRequest) (*AcquireResult, error) {
	rec, token, err := d.authority.Acquire(ctx, req)
	if err != nil {
		return nil, err
	}
	return &AcquireResult{Token: token, AcquiredAt: rec.AcquiredAt, ExpiresAt: rec.ExpiresAt, Sequence: rec.Sequence}, nil
}

func (d *directTransport) Renew(ctx context.Context, agentID identity.AgentID, sessionID, currentToken string, ttl time.Duration) (*RenewResult, error) {
	rec, token, err := d.authority.Renew(ctx, agentID, sessionID, currentToken, ttl)
	if err != nil {
		return nil, err
	}
	return &RenewResult{Token: token, ExpiresAt: rec.ExpiresAt, Sequence: rec.Sequence}, nil
}

func (d *directTransport) Release(ctx context.Context, agentID identity.AgentID, sessionID, token string) error {
	return d.authority.Release(ctx, agentID, sessionID, token)
}

func newTestAuthority(t *testing.T, reg *fakeRegistry) *Authority {
	t.Helper()
	key := GenerateTokenKey()
	return NewAuthority(reg, NewTokenCodec(key), 2*time.Minute)
}

func TestAcquireGrantsFreshLease(t *testing.T) {
	reg := newFakeRegistry()
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	reg.register(kp)
	a := newTestAuthority(t, reg)
	transport := &directTransport{authority: a}

	client, err := NewClient(kp, transport)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Acquire(context.Background(), 60*time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, ok := client.CurrentToken(); !ok {
		t.Fatal("expected a token after a successful acquire")
	}
}

func TestAcquireExclusivity(t *testing.T) {
	reg := newFakeRegistry()
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	agentID := reg.register(kp)
	a := newTestAuthority(t, reg)
	transport := &directTransport{authority: a}

	client1, err := NewClient(kp, transport)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client2, err := NewClient(kp, transport)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = client1.Acquire(context.Background(), 60*time.Second)
	}()
	go func() {
		defer wg.Done()
		results[1] = client2.Acquire(context.Background(), 60*time.Second)
	}()
	wg.Wait()

	succeeded := 0
	var heldErr *HeldError
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &heldErr):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful acquire, got %d", succeeded)
	}

	_, state := a.Status(agentID)
	if state != StateHeld {
		t.Fatalf("expected authority state Held, got %v", state)
	}
}

func TestRenewExtendsExpiryAndIncrementsSequence(t *testing.T) {
	reg := newFakeRegistry()
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	reg.register(kp)
	a := newTestAuthority(t, reg)
	transport := &directTransport{authority: a}

	client, err := NewClient(kp, transport)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Acquire(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	before := *client.current

	if err := client.Renew(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Renew: %v", err)
	}

	tok, ok := client.CurrentToken()
	if !ok || tok == "" {
		t.Fatal("expected a refreshed token after renew")
	}
	if got := client.current.Sequence; got != before.Sequence+1 {
		t.Fatalf("expected sequence %d after renew, got %d", before.Sequence+1, got)
	}
	if !client.current.ExpiresAt.After(before.ExpiresAt) {
		t.Fatalf("expected expiry after %v, got %v", before.ExpiresAt, client.current.ExpiresAt)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	reg := newFakeRegistry()
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	reg.register(kp)
	a := newTestAuthority(t, reg)
	transport := &directTransport{authority: a}

	client, err := NewClient(kp, transport)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Acquire(context.Background(), 30*time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if err := client.Release(context.Background()); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := client.Release(context.Background()); err != nil && !errors.Is(err, ErrNoActiveLease) {
		t.Fatalf("second Release should succeed or report NoActiveLease, got %v", err)
	}
}

func TestRequireHeldRejectsAfterExpiry(t *testing.T) {
	reg := newFakeRegistry()
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	agentID := reg.register(kp)
	a := newTestAuthority(t, reg)
	transport := &directTransport{authority: a}

	client, err := NewClient(kp, transport)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Acquire(context.Background(), 1*time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	token, _ := client.CurrentToken()

	a.now = func() time.Time { return time.Now().Add(5 * time.Second) }

	if _, err := a.RequireHeld(agentID, client.SessionID(), token); !errors.Is(err, ErrNoActiveLease) {
		t.Fatalf("expected ErrNoActiveLease after expiry, got %v", err)
	}
}

func TestWithLeaseReleasesOnPanic(t *testing.T) {
	reg := newFakeRegistry()
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	agentID := reg.register(kp)
	a := newTestAuthority(t, reg)
	transport := &directTransport{authority: a}

	client, err := NewClient(kp, transport)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	func() {
		defer func() {
			recover()
		}()
		_ = client.WithLease(context.Background(), 30*time.Second, false, func(ctx context.Context) error {
			panic("boom")
		})
	}()

	_, state := a.Status(agentID)
	if state != StateFree {
		t.Fatalf("expected lease to be released after panic, got state %v", state)
	}
}

func TestAcquireRejectsUnknownAgent(t *testing.T) {
	reg := newFakeRegistry()
	unregistered, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	a := newTestAuthority(t, reg)
	transport := &directTransport{authority: a}

	client, err := NewClient(unregistered, transport)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Acquire(context.Background(), 10*time.Second); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}
