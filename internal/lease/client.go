package lease

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
	"github.com/sigaid/sigaid-core/internal/identity"
)

// AcquireResult and RenewResult are what a Transport hands back to the
// client after a successful round trip; they carry only what the client
// needs to track its own lease, not the Authority's internal Record.
type AcquireResult struct {
	Token      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
	Sequence   int64
}

type RenewResult struct {
	Token     string
	ExpiresAt time.Time
	Sequence  int64
}

// Transport is how a Client reaches the Authority. The HTTP implementation
// lives outside this package so the lease protocol itself stays testable
// without a network.
type Transport interface {
	Acquire(ctx context.Context, req AcquireRequest) (*AcquireResult, error)
	Renew(ctx context.Context, agentID identity.AgentID, sessionID, currentToken string, ttl time.Duration) (*RenewResult, error)
	Release(ctx context.Context, agentID identity.AgentID, sessionID, token string) error
}

// NewSessionID produces a fresh client session identifier.
func NewSessionID() string {
	return "sid_" + uuid.NewString()
}

// Client holds and renews an exclusive lease for a single agent identity.
// A Client is not safe to share a single acquired lease across concurrent
// callers beyond what its own internal mutex serializes; the identity it
// wraps belongs to one logical agent session at a time.
type Client struct {
	mu        sync.Mutex
	kp        *identity.KeyPair
	agentID   identity.AgentID
	transport Transport

	sessionID string
	current   *AcquireResult

	renewCancel context.CancelFunc
	renewDone   chan struct{}

	renewFraction float64
	safetyMargin  time.Duration

	onRenew func(AcquireResult)

	lost chan error
}

// NewClient builds a lease Client for the identity kp, talking to the
// Authority through transport.
func NewClient(kp *identity.KeyPair, transport Transport) (*Client, error) {
	agentID, err := kp.AgentID()
	if err != nil {
		return nil, err
	}
	return &Client{
		kp:            kp,
		agentID:       agentID,
		transport:     transport,
		renewFraction: 0.8,
		safetyMargin:  5 * time.Second,
		lost:          make(chan error, 1),
	}, nil
}

// SessionID returns the session identifier of the currently held lease, if
// any.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// CurrentToken returns the most recently minted lease token, if any is
// held.
func (c *Client) CurrentToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return "", false
	}
	return c.current.Token, true
}

// OnRenew registers a callback invoked after every successful background
// renewal, giving an embedder a liveness signal (e.g. to refresh a
// dashboard or reset its own watchdog) without polling lease status over a
// separate endpoint. It must be set before StartAutoRenew; it is not
// invoked for the initial Acquire/AcquireWait.
func (c *Client) OnRenew(fn func(AcquireResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRenew = fn
}

// Lost returns a channel that receives exactly one error when background
// auto-renewal determines the lease has been lost (renewal failed
// repeatedly past the safety margin).
func (c *Client) Lost() <-chan error {
	return c.lost
}

// Acquire attempts to obtain the lease once; on LeaseHeldByAnother it
// returns immediately without retrying.
func (c *Client) Acquire(ctx context.Context, ttl time.Duration) error {
	return c.acquire(ctx, ttl, false)
}

// AcquireWait attempts to obtain the lease, retrying with bounded
// exponential backoff and full jitter while the slot is held by another
// session, until ctx's deadline is reached.
func (c *Client) AcquireWait(ctx context.Context, ttl time.Duration) error {
	return c.acquire(ctx, ttl, true)
}

func (c *Client) acquire(ctx context.Context, ttl time.Duration, wait bool) error {
	sessionID := NewSessionID()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 1.0 // full jitter: next interval is uniform in [0, 2*base)

	for {
		nonce := make([]byte, 16)
		if _, err := rand.Read(nonce); err != nil {
			return fmt.Errorf("lease: generate nonce: %w", sigcrypto.ErrCrypto)
		}
		now := time.Now().UTC()
		msg := signingMessage(string(c.agentID), sessionID, now, nonce, ttl)
		sig, err := c.kp.Sign(sigcrypto.DomainLease, msg)
		if err != nil {
			return err
		}

		req := AcquireRequest{
			AgentID:   c.agentID,
			SessionID: sessionID,
			Timestamp: now,
			Nonce:     nonce,
			TTL:       ttl,
			Signature: sig,
		}

		res, err := c.transport.Acquire(ctx, req)
		if err == nil {
			c.mu.Lock()
			c.sessionID = sessionID
			c.current = res
			c.mu.Unlock()
			return nil
		}

		var held *HeldError
		if !errors.As(err, &held) || !wait {
			return err
		}

		d := b.NextBackOff()
		if d == backoff.Stop {
			return fmt.Errorf("lease: acquire wait exhausted: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}

// Renew renews the currently held lease once, outside of auto-renewal.
func (c *Client) Renew(ctx context.Context, ttl time.Duration) error {
	c.mu.Lock()
	sessionID := c.sessionID
	current := c.current
	c.mu.Unlock()
	if current == nil {
		return ErrNoActiveLease
	}

	res, err := c.transport.Renew(ctx, c.agentID, sessionID, current.Token, ttl)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.current = &AcquireResult{
		Token:      res.Token,
		AcquiredAt: current.AcquiredAt,
		ExpiresAt:  res.ExpiresAt,
		Sequence:   res.Sequence,
	}
	c.mu.Unlock()
	return nil
}

// Release is best-effort and idempotent: a network failure here does not
// block the caller, and calling Release twice is safe — the Authority will
// let the lease expire on its own if the first release never lands.
func (c *Client) Release(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.sessionID
	current := c.current
	c.current = nil
	c.mu.Unlock()

	if current == nil {
		return ErrNoActiveLease
	}
	err := c.transport.Release(ctx, c.agentID, sessionID, current.Token)
	if err != nil && !errors.Is(err, ErrNoActiveLease) {
		return err
	}
	return nil
}

// StartAutoRenew launches a background renewal loop tied to the currently
// held lease. It must be stopped with StopAutoRenew before the Client is
// discarded, and is always stopped by WithLease on every exit path.
func (c *Client) StartAutoRenew(ttl time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.renewCancel = cancel
	c.renewDone = done
	c.mu.Unlock()

	go c.autoRenewLoop(ctx, ttl, done)
}

// StopAutoRenew cancels the background renewal loop and waits for it to
// exit.
func (c *Client) StopAutoRenew() {
	c.mu.Lock()
	cancel := c.renewCancel
	done := c.renewDone
	c.renewCancel = nil
	c.renewDone = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (c *Client) autoRenewLoop(ctx context.Context, ttl time.Duration, done chan struct{}) {
	defer close(done)
	for {
		c.mu.Lock()
		current := c.current
		c.mu.Unlock()
		if current == nil {
			return
		}

		renewAt := current.AcquiredAt.Add(time.Duration(float64(ttl) * c.renewFraction))
		safetyDeadline := current.ExpiresAt.Add(-c.safetyMargin)

		wait := time.Until(renewAt)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if err := c.renewWithRetry(ctx, ttl, safetyDeadline); err != nil {
			c.signalLost(err)
			return
		}
	}
}

func (c *Client) renewWithRetry(ctx context.Context, ttl time.Duration, deadline time.Time) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 4 * time.Second

	operation := func() error {
		c.mu.Lock()
		sessionID := c.sessionID
		current := c.current
		c.mu.Unlock()
		if current == nil {
			return backoff.Permanent(ErrNoActiveLease)
		}

		res, err := c.transport.Renew(ctx, c.agentID, sessionID, current.Token, ttl)
		if err != nil {
			if time.Now().After(deadline) {
				return backoff.Permanent(err)
			}
			return err
		}

		renewed := AcquireResult{
			Token:      res.Token,
			AcquiredAt: current.AcquiredAt,
			ExpiresAt:  res.ExpiresAt,
			Sequence:   res.Sequence,
		}
		c.mu.Lock()
		c.current = &renewed
		onRenew := c.onRenew
		c.mu.Unlock()
		if onRenew != nil {
			onRenew(renewed)
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func (c *Client) signalLost(err error) {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	select {
	case c.lost <- err:
	default:
	}
}

// WithLease acquires the lease, optionally starts auto-renewal, runs fn,
// and guarantees release on every exit path — including a panic inside fn,
// since deferred release still executes during Go's normal panic unwind.
func (c *Client) WithLease(ctx context.Context, ttl time.Duration, autoRenew bool, fn func(ctx context.Context) error) error {
	if err := c.Acquire(ctx, ttl); err != nil {
		return err
	}
	if autoRenew {
		c.StartAutoRenew(ttl)
	}
	defer func() {
		if autoRenew {
			c.StopAutoRenew()
		}
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = c.Release(releaseCtx)
	}()
	return fn(ctx)
}
