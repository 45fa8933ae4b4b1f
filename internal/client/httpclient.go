package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sigaid/sigaid-core/internal/identity"
	"github.com/sigaid/sigaid-core/internal/lease"
	"github.com/sigaid/sigaid-core/internal/proof"
	"github.com/sigaid/sigaid-core/internal/statechain"
	"github.com/sigaid/sigaid-core/internal/wire"
)

// HTTPClient is the agent-side transport to the Authority: it implements
// lease.Transport and adds the state-chain and verify calls the higher
// level Agent type needs, all over plain HTTP/JSON.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient builds a transport against cfg.AuthorityURL, authenticated
// with cfg.APIKey via the X-API-Key header.
func NewHTTPClient(cfg Config) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.AuthorityURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("client: marshaling request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, ErrTransient
	}
	defer resp.Body.Close()

	if err := classifyHTTPError(resp); err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, nil
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("client: decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func decodeErrorBody(resp *http.Response) wire.ErrorBody {
	var body wire.ErrorBody
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return body
}

// --- lease.Transport ---

func (c *HTTPClient) Acquire(ctx context.Context, req lease.AcquireRequest) (*lease.AcquireResult, error) {
	wireReq := wire.AcquireLeaseRequest{
		AgentID:      string(req.AgentID),
		SessionID:    req.SessionID,
		Timestamp:    req.Timestamp,
		NonceHex:     hex.EncodeToString(req.Nonce),
		TTLSeconds:   int64(req.TTL / time.Second),
		SignatureHex: hex.EncodeToString(req.Signature),
	}

	var out wire.AcquireLeaseResponse
	var held *lease.HeldError
	err := withRetry(ctx, func() error {
		status, body, rawErr := c.postRaw(ctx, "/v1/leases", wireReq, &out)
		if rawErr != nil {
			return rawErr
		}
		switch status {
		case http.StatusOK:
			return nil
		case http.StatusConflict:
			if body.ExpiresAt != nil {
				held = &lease.HeldError{HolderSessionID: body.HolderSessionID, ExpiresAt: *body.ExpiresAt}
			}
			return backoff.Permanent(lease.ErrLeaseHeldByAnother)
		case http.StatusUnauthorized:
			return backoff.Permanent(lease.ErrInvalidSignature)
		default:
			return backoff.Permanent(fmt.Errorf("client: acquire failed with status %d", status))
		}
	})
	if held != nil {
		return nil, held
	}
	if err != nil {
		return nil, err
	}
	return &lease.AcquireResult{
		Token:      out.LeaseToken,
		AcquiredAt: out.AcquiredAt,
		ExpiresAt:  out.ExpiresAt,
		Sequence:   out.Sequence,
	}, nil
}

func (c *HTTPClient) Renew(ctx context.Context, agentID identity.AgentID, sessionID, currentToken string, ttl time.Duration) (*lease.RenewResult, error) {
	wireReq := wire.RenewLeaseRequest{SessionID: sessionID, CurrentToken: currentToken, TTLSeconds: int64(ttl / time.Second)}
	var out wire.RenewLeaseResponse

	err := withRetry(ctx, func() error {
		status, err := c.do(ctx, http.MethodPut, "/v1/leases/"+string(agentID), wireReq, &out)
		if err != nil {
			return err
		}
		switch status {
		case http.StatusOK:
			return nil
		case http.StatusForbidden:
			return backoff.Permanent(lease.ErrSessionMismatch)
		case http.StatusGone:
			return backoff.Permanent(lease.ErrLeaseExpired)
		default:
			return backoff.Permanent(fmt.Errorf("client: renew failed with status %d", status))
		}
	})
	if err != nil {
		return nil, err
	}
	return &lease.RenewResult{Token: out.LeaseToken, ExpiresAt: out.ExpiresAt, Sequence: out.Sequence}, nil
}

func (c *HTTPClient) Release(ctx context.Context, agentID identity.AgentID, sessionID, token string) error {
	wireReq := wire.ReleaseLeaseRequest{SessionID: sessionID, Token: token}
	return withRetry(ctx, func() error {
		status, err := c.do(ctx, http.MethodDelete, "/v1/leases/"+string(agentID), wireReq, nil)
		if err != nil {
			return err
		}
		switch status {
		case http.StatusNoContent, http.StatusOK:
			return nil
		default:
			return backoff.Permanent(fmt.Errorf("client: release failed with status %d", status))
		}
	})
}

// postRaw is like do, but also decodes a wire.ErrorBody for non-2xx
// responses so callers can branch on structured detail (lease_held, fork).
func (c *HTTPClient) postRaw(ctx context.Context, path string, body any, out any) (int, wire.ErrorBody, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, wire.ErrorBody{}, fmt.Errorf("client: marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, wire.ErrorBody{}, fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, wire.ErrorBody{}, ErrTransient
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if decErr := json.NewDecoder(resp.Body).Decode(out); decErr != nil {
				return resp.StatusCode, wire.ErrorBody{}, fmt.Errorf("client: decoding response: %w", decErr)
			}
		}
		return resp.StatusCode, wire.ErrorBody{}, nil
	}
	if isTransientStatus(resp.StatusCode) {
		return resp.StatusCode, wire.ErrorBody{}, ErrTransient
	}
	return resp.StatusCode, decodeErrorBody(resp), nil
}

// --- state chain ---

// AppendState submits one signed entry, returning the new head.
func (c *HTTPClient) AppendState(ctx context.Context, e *statechain.Entry, leaseToken string) (statechain.Head, error) {
	wireEntry := wire.StateEntry{
		AgentID:              string(e.AgentID),
		Sequence:             e.Sequence,
		PrevHashBase64:       base64.StdEncoding.EncodeToString(e.PrevHash[:]),
		ActionType:           string(e.ActionType),
		Summary:              e.Summary,
		ActionDataHashBase64: base64.StdEncoding.EncodeToString(e.ActionDataHash[:]),
		Timestamp:            e.Timestamp,
		SessionID:            e.SessionID,
		EntryHashBase64:      base64.StdEncoding.EncodeToString(e.EntryHash[:]),
		SignatureHex:         hex.EncodeToString(e.Signature),
		LeaseToken:           leaseToken,
	}

	var out wire.AppendStateResponse
	var forkErr *statechain.ForkError
	err := withRetry(ctx, func() error {
		status, body, rawErr := c.postRaw(ctx, "/v1/state/"+string(e.AgentID), wireEntry, &out)
		if rawErr != nil {
			return rawErr
		}
		switch status {
		case http.StatusCreated:
			return nil
		case http.StatusConflict:
			if body.CurrentHead != nil {
				head := statechain.Head{Sequence: body.CurrentHead.Sequence}
				if raw, decErr := base64.StdEncoding.DecodeString(body.CurrentHead.EntryHashBase64); decErr == nil {
					copy(head.EntryHash[:], raw)
				}
				forkErr = &statechain.ForkError{CurrentHead: head}
			}
			return backoff.Permanent(statechain.ErrHashMismatch)
		case http.StatusForbidden:
			return backoff.Permanent(lease.ErrNoActiveLease)
		case http.StatusUnauthorized:
			return backoff.Permanent(statechain.ErrBadSignature)
		default:
			return backoff.Permanent(fmt.Errorf("client: append failed with status %d", status))
		}
	})
	if forkErr != nil {
		return statechain.Head{}, forkErr
	}
	if err != nil {
		return statechain.Head{}, err
	}
	head := statechain.Head{Sequence: out.Sequence}
	if raw, decErr := base64.StdEncoding.DecodeString(out.EntryHashBase64); decErr == nil {
		copy(head.EntryHash[:], raw)
	}
	return head, nil
}

// StateHead fetches the current head for agentID.
func (c *HTTPClient) StateHead(ctx context.Context, agentID identity.AgentID) (statechain.Head, error) {
	var out wire.StateHead
	status, err := c.do(ctx, http.MethodGet, "/v1/state/"+string(agentID), nil, &out)
	if err != nil {
		return statechain.Head{}, err
	}
	if status != http.StatusOK {
		return statechain.Head{}, fmt.Errorf("client: fetching state head failed with status %d", status)
	}
	head := statechain.Head{Sequence: out.Sequence}
	if raw, decErr := base64.StdEncoding.DecodeString(out.EntryHashBase64); decErr == nil {
		copy(head.EntryHash[:], raw)
	}
	return head, nil
}

// --- verify ---

// Verify submits a proof bundle for online verification.
func (c *HTTPClient) Verify(ctx context.Context, b *proof.Bundle, requireLease bool, minReputation *float64) (proof.Result, error) {
	wireBundle := wire.ProofBundle{
		AgentID:               string(b.AgentID),
		SessionID:             b.SessionID,
		ChallengeBase64:       base64.StdEncoding.EncodeToString(b.Challenge),
		ChallengeSignatureHex: hex.EncodeToString(b.ChallengeSignature),
		StateHead: wire.StateHead{
			Sequence:        b.StateHead.Sequence,
			EntryHashBase64: base64.StdEncoding.EncodeToString(b.StateHead.EntryHash[:]),
		},
		LeaseToken:         b.LeaseToken,
		BundleTimestamp:    b.BundleTimestamp,
		BundleSignatureHex: hex.EncodeToString(b.BundleSignature),
	}
	req := wire.VerifyRequest{Proof: wireBundle, RequireLease: requireLease, MinReputationScore: minReputation}

	var out wire.VerifyResponse
	_, err := c.do(ctx, http.MethodPost, "/v1/verify", req, &out)
	if err != nil {
		return proof.Result{}, err
	}
	return proof.Result{
		Valid:   out.Valid,
		Offline: out.Offline,
		Reason:  proof.Reason(out.ReasonCode),
		AgentID: identity.AgentID(out.AgentID),
	}, nil
}
