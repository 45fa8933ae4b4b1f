package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sigaid/sigaid-core/internal/identity"
	"github.com/sigaid/sigaid-core/internal/lease"
	"github.com/sigaid/sigaid-core/internal/proof"
	"github.com/sigaid/sigaid-core/internal/statechain"
	"github.com/sigaid/sigaid-core/internal/wire"
)

func newTestHTTPClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Config{AuthorityURL: srv.URL, APIKey: "test-key"})
}

func TestAcquireMapsConflictToHeldError(t *testing.T) {
	expires := time.Now().Add(30 * time.Second).UTC()
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("expected X-API-Key header, got %q", got)
		}
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(wire.ErrorBody{
			Error:           "lease_held",
			HolderSessionID: "sid_other",
			ExpiresAt:       &expires,
		})
	})

	_, err := c.Acquire(context.Background(), lease.AcquireRequest{AgentID: "aid_test", SessionID: "sid_mine"})
	var held *lease.HeldError
	if !errors.As(err, &held) {
		t.Fatalf("expected *lease.HeldError, got %v", err)
	}
	if held.HolderSessionID != "sid_other" {
		t.Fatalf("expected holder session id sid_other, got %q", held.HolderSessionID)
	}
}

func TestAcquireSuccess(t *testing.T) {
	now := time.Now().UTC()
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req wire.AcquireLeaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(wire.AcquireLeaseResponse{
			LeaseToken: "tok_abc",
			AcquiredAt: now,
			ExpiresAt:  now.Add(time.Minute),
			Sequence:   0,
		})
	})

	res, err := c.Acquire(context.Background(), lease.AcquireRequest{AgentID: "aid_test", SessionID: "sid_mine", TTL: time.Minute})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if res.Token != "tok_abc" {
		t.Fatalf("expected token tok_abc, got %q", res.Token)
	}
}

func TestAppendStateMapsConflictToForkError(t *testing.T) {
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(wire.ErrorBody{
			Error: "fork",
			CurrentHead: &wire.StateHead{
				Sequence:        4,
				EntryHashBase64: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=",
			},
		})
	})

	entry := &statechain.Entry{AgentID: "aid_test", Sequence: 5, ActionType: statechain.ActionCustom}
	_, err := c.AppendState(context.Background(), entry, "tok_abc")
	var forkErr *statechain.ForkError
	if !errors.As(err, &forkErr) {
		t.Fatalf("expected *statechain.ForkError, got %v", err)
	}
	if forkErr.CurrentHead.Sequence != 4 {
		t.Fatalf("expected reported head sequence 4, got %d", forkErr.CurrentHead.Sequence)
	}
}

func TestStateHeadErrorsOnNonOKStatus(t *testing.T) {
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(wire.ErrorBody{Error: "agent_not_found"})
	})

	_, err := c.StateHead(context.Background(), "aid_unknown")
	if err == nil {
		t.Fatal("expected an error for a 404 response, not a silently decoded zero head")
	}
}

func TestVerifySuccess(t *testing.T) {
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req wire.VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(wire.VerifyResponse{Valid: true, AgentID: req.Proof.AgentID})
	})

	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	challenge, err := proof.NewChallenge()
	if err != nil {
		t.Fatalf("NewChallenge: %v", err)
	}
	bundle, err := proof.Construct(kp, "sid_test", "tok_abc", statechain.EmptyHead, challenge, time.Now())
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	result, err := c.Verify(context.Background(), bundle, false, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Valid {
		t.Fatal("expected a valid result")
	}
}
