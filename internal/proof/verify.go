package proof

import (
	"context"
	"time"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
	"github.com/sigaid/sigaid-core/internal/identity"
	"github.com/sigaid/sigaid-core/internal/statechain"
)

// Reason is the small, enumerated set of ways a proof bundle can fail to
// verify. It is the only detail a caller gets beyond the valid/invalid
// boolean — there is no escape hatch for ad hoc reason strings.
type Reason string

const (
	ReasonBadAgentID           Reason = "BadAgentId"
	ReasonBadSignature         Reason = "BadSignature"
	ReasonChallengeMismatch    Reason = "ChallengeMismatch"
	ReasonStaleBundle          Reason = "StaleBundle"
	ReasonNoActiveLease        Reason = "NoActiveLease"
	ReasonStateHeadMismatch    Reason = "StateHeadMismatch"
	ReasonAuthorityUnavailable Reason = "AuthorityUnavailable"
	ReasonReputationTooLow     Reason = "ReputationTooLow"
)

// Result is the outcome of verifying a Bundle.
type Result struct {
	Valid   bool
	Offline bool
	Reason  Reason
	AgentID identity.AgentID
}

// Policy carries the verifier's options beyond the bundle's own internal
// consistency. Verify enforces RequireLease and MaxClockSkew. MinReputation
// is not read by Verify; authority.Service.Verify enforces it. MaxStateAge
// is not checked anywhere.
type Policy struct {
	RequireLease  bool
	MaxStateAge   time.Duration
	MinReputation *float64
	MaxClockSkew  time.Duration
}

// AuthorityClient is the subset of Authority behavior Verify needs for its
// online path: validating that the bundle's lease token is currently held
// and that the bundle's state head matches the committed head.
type AuthorityClient interface {
	CheckLease(ctx context.Context, agentID identity.AgentID, sessionID, token string) error
	CurrentHead(ctx context.Context, agentID identity.AgentID) (statechain.Head, error)
}

func invalid(reason Reason) Result {
	return Result{Valid: false, Reason: reason}
}

func checkBundleSelfConsistency(pub []byte, b *Bundle, now time.Time, maxSkew time.Duration) Reason {
	if !sigcrypto.Verify(pub, sigcrypto.DomainProof, canonicalBundleBytes(b.AgentID, b.LeaseToken, b.StateHead, b.Challenge, b.ChallengeSignature, b.BundleTimestamp), b.BundleSignature) {
		return ReasonBadSignature
	}
	if !sigcrypto.Verify(pub, sigcrypto.DomainChallenge, b.Challenge, b.ChallengeSignature) {
		return ReasonBadSignature
	}
	if maxSkew > 0 {
		skew := now.Sub(b.BundleTimestamp)
		if skew < 0 {
			skew = -skew
		}
		if skew > maxSkew {
			return ReasonStaleBundle
		}
	}
	return ""
}

// Verify runs the online (Authority-corroborated) verification path.
// issuedChallenge is the challenge bytes the verifying service itself
// issued, compared byte-for-byte against the bundle.
func Verify(ctx context.Context, authority AuthorityClient, issuedChallenge []byte, b *Bundle, policy Policy, now time.Time) Result {
	pub, err := b.AgentID.PublicKey()
	if err != nil {
		return invalid(ReasonBadAgentID)
	}

	if len(issuedChallenge) != len(b.Challenge) || !sigcrypto.CTEqual(issuedChallenge, b.Challenge) {
		return invalid(ReasonChallengeMismatch)
	}

	if reason := checkBundleSelfConsistency(pub, b, now, policy.MaxClockSkew); reason != "" {
		return invalid(reason)
	}

	if policy.RequireLease {
		if err := authority.CheckLease(ctx, b.AgentID, b.SessionID, b.LeaseToken); err != nil {
			return invalid(ReasonNoActiveLease)
		}
	}

	head, err := authority.CurrentHead(ctx, b.AgentID)
	if err != nil {
		return invalid(ReasonAuthorityUnavailable)
	}
	if head != b.StateHead {
		return invalid(ReasonStateHeadMismatch)
	}

	return Result{Valid: true, AgentID: b.AgentID}
}

// VerifyOffline runs only the checks that don't require contacting the
// Authority: signature and challenge verification, and — if the caller
// supplies a cached last-known head — consistency against it. The result
// is always flagged Offline so callers weigh it accordingly; it is never
// conflated with an online Valid result.
func VerifyOffline(issuedChallenge []byte, b *Bundle, cachedHead *statechain.Head, maxSkew time.Duration, now time.Time) Result {
	pub, err := b.AgentID.PublicKey()
	if err != nil {
		return invalid(ReasonBadAgentID)
	}

	if len(issuedChallenge) != len(b.Challenge) || !sigcrypto.CTEqual(issuedChallenge, b.Challenge) {
		return invalid(ReasonChallengeMismatch)
	}

	if reason := checkBundleSelfConsistency(pub, b, now, maxSkew); reason != "" {
		return invalid(reason)
	}

	if cachedHead != nil {
		if b.StateHead.Sequence < cachedHead.Sequence {
			return invalid(ReasonStateHeadMismatch)
		}
		if b.StateHead.Sequence == cachedHead.Sequence && b.StateHead.EntryHash != cachedHead.EntryHash {
			return invalid(ReasonStateHeadMismatch)
		}
	}

	return Result{Valid: true, Offline: true, AgentID: b.AgentID}
}
