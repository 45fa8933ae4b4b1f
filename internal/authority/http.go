package authority

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
	"github.com/sigaid/sigaid-core/internal/identity"
	"github.com/sigaid/sigaid-core/internal/lease"
	"github.com/sigaid/sigaid-core/internal/platform/ratelimiter"
	"github.com/sigaid/sigaid-core/internal/proof"
	"github.com/sigaid/sigaid-core/internal/statechain"
	"github.com/sigaid/sigaid-core/internal/wire"
)

// perAgentRPS and perAgentBurst bound how often a single agent_id may hit
// the lease-acquire and state-append endpoints, independent of whatever
// quota its API key carries; a compromised or misbehaving agent identity
// should not be able to hammer the Authority under its own name.
const (
	perAgentRPS    = 5.0
	perAgentBurst  = 10
	limiterIdleTTL = 30 * time.Minute
)

// DefaultListenAddr is used when Config.ListenAddr is empty.
const DefaultListenAddr = "127.0.0.1:8443"

// Server is the Authority's HTTP surface: a single http.Server built on
// http.NewServeMux, with a health endpoint, bearer/API-key auth, and a
// bounded ReadHeaderTimeout.
type Server struct {
	httpServer *http.Server
	svc        *Service
	cfg        Config
	log        *slog.Logger
	metrics    *Metrics
	limiter    *ratelimiter.AgentLimiter
}

// NewServer builds a Server ready to ListenAndServe. logger should already
// be wrapped through privacylog.WrapHandler by the caller.
func NewServer(cfg Config, svc *Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	limiter := ratelimiter.New(perAgentRPS, perAgentBurst, limiterIdleTTL)
	if limiter != nil {
		limiter.OnThrottled = func(identity.AgentID) { metrics.RateLimited.Inc() }
	}
	s := &Server{
		svc:     svc,
		cfg:     cfg,
		log:     logger,
		metrics: metrics,
		limiter: limiter,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /v1/agents", s.withAuth(s.handleRegisterAgent))
	mux.HandleFunc("GET /v1/agents/{agent_id}", s.withAuth(s.handleGetAgent))
	mux.HandleFunc("POST /v1/leases", s.withAuth(s.withAgentRateLimit(s.handleAcquireLease, acquireLeaseAgentID)))
	mux.HandleFunc("PUT /v1/leases/{agent_id}", s.withAuth(s.withAgentRateLimit(s.handleRenewLease, pathAgentID)))
	mux.HandleFunc("DELETE /v1/leases/{agent_id}", s.withAuth(s.handleReleaseLease))
	mux.HandleFunc("GET /v1/leases/{agent_id}", s.withAuth(s.handleLeaseStatus))
	mux.HandleFunc("POST /v1/state/{agent_id}", s.withAuth(s.withAgentRateLimit(s.handleAppendState, pathAgentID)))
	mux.HandleFunc("GET /v1/state/{agent_id}", s.withAuth(s.handleGetStateHead))
	mux.HandleFunc("GET /v1/state/{agent_id}/history", s.withAuth(s.handleStateHistory))
	mux.HandleFunc("POST /v1/verify", s.withAuth(s.handleVerify))

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// withAuth enforces the X-API-Key / Authorization: Bearer contract when the
// Authority is configured to require one.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.RequireAPIKey {
			next(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
				key = auth[7:]
			}
		}
		if !apiKeyAllowed(s.cfg.APIKeys, key) {
			writeError(w, http.StatusForbidden, "permission_denied")
			return
		}
		next(w, r)
	}
}

// withAgentRateLimit throttles a handler per agent_id, independent of the
// coarser API-key auth check. keyFn extracts the agent_id to throttle on;
// for handlers where it lives in the JSON body rather than the path, the
// body is buffered and restored so the wrapped handler can still read it.
func (s *Server) withAgentRateLimit(next http.HandlerFunc, keyFn func(r *http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := keyFn(r)
		if key != "" && !s.limiter.Allow(identity.AgentID(key), time.Now()) {
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
		next(w, r)
	}
}

func pathAgentID(r *http.Request) string {
	return r.PathValue("agent_id")
}

func acquireLeaseAgentID(r *http.Request) string {
	raw, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		r.Body = io.NopCloser(bytes.NewReader(nil))
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var probe struct {
		AgentID string `json:"agent_id"`
	}
	_ = json.Unmarshal(raw, &probe)
	return probe.AgentID
}

func apiKeyAllowed(allowed []string, key string) bool {
	if key == "" {
		return false
	}
	for _, a := range allowed {
		if sigcrypto.CTEqual([]byte(a), []byte(key)) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errCode string) {
	writeJSON(w, status, wire.ErrorBody{Error: errCode})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- agents ---

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req wire.RegisterAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}

	pub, err := base64.StdEncoding.DecodeString(req.PublicKeyBase64)
	if err != nil || len(pub) != sigcrypto.PublicKeySize {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}

	rec, err := s.svc.RegisterAgent(identity.AgentID(req.AgentID), ed25519.PublicKey(pub), req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyRegistered):
			writeError(w, http.StatusConflict, "already_registered")
		case errors.Is(err, ErrMetadataTooLarge):
			writeError(w, http.StatusBadRequest, "metadata_too_large")
		default:
			writeError(w, http.StatusBadRequest, "invalid_input")
		}
		return
	}
	s.metrics.AgentsRegistered.Inc()
	writeJSON(w, http.StatusCreated, wire.RegisterAgentResponse{
		AgentID:      string(rec.AgentID),
		RegisteredAt: rec.RegisteredAt,
	})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := identity.AgentID(r.PathValue("agent_id"))
	rec, err := s.svc.Registry.Get(agentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, wire.GetAgentResponse{
		AgentID:          string(rec.AgentID),
		PublicKeyBase64:  base64.StdEncoding.EncodeToString(rec.PublicKey),
		Metadata:         rec.Metadata,
		RegisteredAt:     rec.RegisteredAt,
		ReputationScore:  rec.Reputation.Score(),
		SuccessfulProofs: int64(rec.Reputation.Successes),
		FailedProofs:     int64(rec.Reputation.ForkIncidents),
		Revoked:          rec.Revoked,
	})
}

// --- leases ---

func (s *Server) handleAcquireLease(w http.ResponseWriter, r *http.Request) {
	var req wire.AcquireLeaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	nonce, err := hex.DecodeString(req.NonceHex)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}
	sig, err := hex.DecodeString(req.SignatureHex)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}

	rec, token, err := s.svc.Leases.Acquire(r.Context(), lease.AcquireRequest{
		AgentID:   identity.AgentID(req.AgentID),
		SessionID: req.SessionID,
		Timestamp: req.Timestamp,
		Nonce:     nonce,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
		Signature: sig,
	})
	if err != nil {
		var held *lease.HeldError
		switch {
		case errors.As(err, &held):
			s.metrics.LeaseAcquires.WithLabelValues("held").Inc()
			writeJSON(w, http.StatusConflict, wire.ErrorBody{
				Error:           "lease_held",
				HolderSessionID: held.HolderSessionID,
				ExpiresAt:       &held.ExpiresAt,
			})
		case errors.Is(err, lease.ErrInvalidSignature), errors.Is(err, lease.ErrUnknownAgent):
			s.metrics.LeaseAcquires.WithLabelValues("unauthorized").Inc()
			writeError(w, http.StatusUnauthorized, "bad_signature")
		case errors.Is(err, lease.ErrClockSkew), errors.Is(err, lease.ErrReplayedNonce):
			s.metrics.LeaseAcquires.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusBadRequest, "invalid_input")
		default:
			s.metrics.LeaseAcquires.WithLabelValues("error").Inc()
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}
	s.metrics.LeaseAcquires.WithLabelValues("granted").Inc()
	writeJSON(w, http.StatusOK, wire.AcquireLeaseResponse{
		LeaseToken: token,
		AcquiredAt: rec.AcquiredAt,
		ExpiresAt:  rec.ExpiresAt,
		Sequence:   rec.Sequence,
	})
}

func (s *Server) handleRenewLease(w http.ResponseWriter, r *http.Request) {
	agentID := identity.AgentID(r.PathValue("agent_id"))
	var req wire.RenewLeaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}

	rec, token, err := s.svc.Leases.Renew(r.Context(), agentID, req.SessionID, req.CurrentToken, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		switch {
		case errors.Is(err, lease.ErrSessionMismatch):
			writeError(w, http.StatusForbidden, "session_mismatch")
		case errors.Is(err, lease.ErrLeaseExpired):
			writeError(w, http.StatusGone, "lease_expired")
		default:
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}
	s.metrics.LeaseRenewals.Inc()
	writeJSON(w, http.StatusOK, wire.RenewLeaseResponse{
		LeaseToken: token,
		ExpiresAt:  rec.ExpiresAt,
		Sequence:   rec.Sequence,
	})
}

func (s *Server) handleReleaseLease(w http.ResponseWriter, r *http.Request) {
	agentID := identity.AgentID(r.PathValue("agent_id"))
	var req wire.ReleaseLeaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}

	err := s.svc.Leases.Release(r.Context(), agentID, req.SessionID, req.Token)
	if err != nil && !errors.Is(err, lease.ErrNoActiveLease) {
		writeError(w, http.StatusForbidden, "session_mismatch")
		return
	}
	s.metrics.LeaseReleases.Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeaseStatus(w http.ResponseWriter, r *http.Request) {
	agentID := identity.AgentID(r.PathValue("agent_id"))
	rec, state := s.svc.Leases.Status(agentID)

	resp := wire.LeaseStatusResponse{AgentID: string(agentID), State: string(state)}
	if rec != nil {
		resp.SessionID = rec.SessionID
		acquired := rec.AcquiredAt
		expires := rec.ExpiresAt
		resp.AcquiredAt = &acquired
		resp.ExpiresAt = &expires
		resp.Sequence = rec.Sequence
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- state chain ---

func (s *Server) handleAppendState(w http.ResponseWriter, r *http.Request) {
	var wireEntry wire.StateEntry
	if err := decodeJSON(r, &wireEntry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}

	entry, sessionID, token, err := decodeWireEntry(wireEntry)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}

	head, err := s.svc.AppendState(r.Context(), sessionID, token, entry)
	if err != nil {
		var forkErr *statechain.ForkError
		switch {
		case errors.As(err, &forkErr):
			s.metrics.ForkRejections.Inc()
			writeJSON(w, http.StatusConflict, wire.ErrorBody{
				Error: "fork",
				CurrentHead: &wire.StateHead{
					Sequence:        forkErr.CurrentHead.Sequence,
					EntryHashBase64: base64.StdEncoding.EncodeToString(forkErr.CurrentHead.EntryHash[:]),
				},
			})
		case errors.Is(err, lease.ErrNoActiveLease):
			writeError(w, http.StatusForbidden, "no_active_lease")
		case errors.Is(err, statechain.ErrBadSignature):
			writeError(w, http.StatusUnauthorized, "bad_signature")
		case errors.Is(err, statechain.ErrSigningKeyChanged):
			writeError(w, http.StatusForbidden, "permission_denied")
		default:
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}
	s.metrics.StateAppends.Inc()
	writeJSON(w, http.StatusCreated, wire.AppendStateResponse{
		Sequence:        head.Sequence,
		EntryHashBase64: base64.StdEncoding.EncodeToString(head.EntryHash[:]),
	})
}

func (s *Server) handleGetStateHead(w http.ResponseWriter, r *http.Request) {
	agentID := identity.AgentID(r.PathValue("agent_id"))
	head := s.svc.Chain.Head(agentID)
	writeJSON(w, http.StatusOK, wire.StateHead{
		Sequence:        head.Sequence,
		EntryHashBase64: base64.StdEncoding.EncodeToString(head.EntryHash[:]),
	})
}

func (s *Server) handleStateHistory(w http.ResponseWriter, r *http.Request) {
	agentID := identity.AgentID(r.PathValue("agent_id"))
	limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	entries, total := s.svc.Chain.History(agentID, offset, limit)
	out := make([]wire.StateEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, encodeWireEntry(e))
	}
	writeJSON(w, http.StatusOK, wire.StateHistoryResponse{
		Entries: out,
		Limit:   limit,
		Offset:  offset,
		Total:   total,
	})
}

func parseIntDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// --- verify ---

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req wire.VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}

	bundle, challenge, err := decodeWireBundle(req.Proof)
	if err != nil {
		writeJSON(w, http.StatusOK, wire.VerifyResponse{Valid: false, ReasonCode: string(proof.ReasonBadAgentID)})
		return
	}

	policy := proof.Policy{RequireLease: req.RequireLease, MaxClockSkew: 2 * time.Minute, MinReputation: req.MinReputationScore}
	result := s.svc.Verify(r.Context(), challenge, bundle, policy)

	s.metrics.VerifyOutcomes.WithLabelValues(string(result.Reason)).Inc()
	writeJSON(w, http.StatusOK, wire.VerifyResponse{
		Valid:      result.Valid,
		AgentID:    string(result.AgentID),
		ReasonCode: string(result.Reason),
		Offline:    result.Offline,
	})
}

// --- wire <-> domain conversions ---

func decodeWireEntry(w wire.StateEntry) (*statechain.Entry, string, string, error) {
	prevHash, err := base64.StdEncoding.DecodeString(w.PrevHashBase64)
	if err != nil || len(prevHash) != 32 {
		return nil, "", "", errInvalidWireField
	}
	dataHash, err := base64.StdEncoding.DecodeString(w.ActionDataHashBase64)
	if err != nil || len(dataHash) != 32 {
		return nil, "", "", errInvalidWireField
	}
	entryHash, err := base64.StdEncoding.DecodeString(w.EntryHashBase64)
	if err != nil || len(entryHash) != 32 {
		return nil, "", "", errInvalidWireField
	}
	sig, err := hex.DecodeString(w.SignatureHex)
	if err != nil {
		return nil, "", "", errInvalidWireField
	}

	e := &statechain.Entry{
		AgentID:    identity.AgentID(w.AgentID),
		Sequence:   w.Sequence,
		ActionType: statechain.ActionType(w.ActionType),
		Summary:    w.Summary,
		Timestamp:  w.Timestamp,
		SessionID:  w.SessionID,
		Signature:  sig,
	}
	copy(e.PrevHash[:], prevHash)
	copy(e.ActionDataHash[:], dataHash)
	copy(e.EntryHash[:], entryHash)
	return e, w.SessionID, w.LeaseToken, nil
}

var errInvalidWireField = errors.New("authority: invalid wire field")

func encodeWireEntry(e *statechain.Entry) wire.StateEntry {
	return wire.StateEntry{
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
	}
}

func decodeWireBundle(b wire.ProofBundle) (*proof.Bundle, []byte, error) {
	challenge, err := base64.StdEncoding.DecodeString(b.ChallengeBase64)
	if err != nil {
		return nil, nil, errInvalidWireField
	}
	challengeSig, err := hex.DecodeString(b.ChallengeSignatureHex)
	if err != nil {
		return nil, nil, errInvalidWireField
	}
	bundleSig, err := hex.DecodeString(b.BundleSignatureHex)
	if err != nil {
		return nil, nil, errInvalidWireField
	}
	entryHash, err := base64.StdEncoding.DecodeString(b.StateHead.EntryHashBase64)
	if err != nil || len(entryHash) != 32 {
		return nil, nil, errInvalidWireField
	}

	head := statechain.Head{Sequence: b.StateHead.Sequence}
	copy(head.EntryHash[:], entryHash)

	bundle := &proof.Bundle{
		AgentID:            identity.AgentID(b.AgentID),
		SessionID:          b.SessionID,
		LeaseToken:         b.LeaseToken,
		StateHead:          head,
		Challenge:          challenge,
		ChallengeSignature: challengeSig,
		BundleTimestamp:    b.BundleTimestamp,
		BundleSignature:    bundleSig,
	}
	return bundle, challenge, nil
}
