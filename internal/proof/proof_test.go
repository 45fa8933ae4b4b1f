package proof

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sigaid/sigaid-core/internal/identity"
	"github.com/sigaid/sigaid-core/internal/statechain"
)

type fakeAuthority struct {
	leaseOK bool
	head    statechain.Head
	headErr error
}

func (f *fakeAuthority) CheckLease(ctx context.Context, agentID identity.AgentID, sessionID, token string) error {
	if f.leaseOK {
		return nil
	}
	return errors.New("no active lease")
}

func (f *fakeAuthority) CurrentHead(ctx context.Context, agentID identity.AgentID) (statechain.Head, error) {
	return f.head, f.headErr
}

func buildTestBundle(t *testing.T) (*identity.KeyPair, []byte, *Bundle, statechain.Head) {
	t.Helper()
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	challenge, err := NewChallenge()
	if err != nil {
		t.Fatalf("NewChallenge: %v", err)
	}
	head := statechain.Head{Sequence: 4, EntryHash: [32]byte{1, 2, 3}}
	now := time.Now()
	b, err := Construct(kp, "sid_1", "lease-token", head, challenge, now)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	return kp, challenge, b, head
}

func TestVerifyOnlineValid(t *testing.T) {
	kp, challenge, b, head := buildTestBundle(t)
	_ = kp
	authority := &fakeAuthority{leaseOK: true, head: head}

	result := Verify(context.Background(), authority, challenge, b, Policy{RequireLease: true, MaxClockSkew: time.Minute}, time.Now())
	if !result.Valid {
		t.Fatalf("expected valid result, got reason %q", result.Reason)
	}
}

func TestVerifyRejectsBadChallengeSignature(t *testing.T) {
	_, challenge, b, head := buildTestBundle(t)
	authority := &fakeAuthority{leaseOK: true, head: head}

	tampered := *b
	tampered.ChallengeSignature = append([]byte{}, b.ChallengeSignature...)
	tampered.ChallengeSignature[0] ^= 0xFF

	result := Verify(context.Background(), authority, challenge, &tampered, Policy{RequireLease: true, MaxClockSkew: time.Minute}, time.Now())
	if result.Valid || result.Reason != ReasonBadSignature {
		t.Fatalf("expected BadSignature, got valid=%v reason=%q", result.Valid, result.Reason)
	}
}

func TestVerifyRejectsWithoutActiveLease(t *testing.T) {
	_, challenge, b, head := buildTestBundle(t)
	authority := &fakeAuthority{leaseOK: false, head: head}

	result := Verify(context.Background(), authority, challenge, b, Policy{RequireLease: true, MaxClockSkew: time.Minute}, time.Now())
	if result.Valid || result.Reason != ReasonNoActiveLease {
		t.Fatalf("expected NoActiveLease, got valid=%v reason=%q", result.Valid, result.Reason)
	}
}

func TestVerifyRejectsStateHeadMismatch(t *testing.T) {
	_, challenge, b, _ := buildTestBundle(t)
	differentHead := statechain.Head{Sequence: 99, EntryHash: [32]byte{9, 9, 9}}
	authority := &fakeAuthority{leaseOK: true, head: differentHead}

	result := Verify(context.Background(), authority, challenge, b, Policy{RequireLease: true, MaxClockSkew: time.Minute}, time.Now())
	if result.Valid || result.Reason != ReasonStateHeadMismatch {
		t.Fatalf("expected StateHeadMismatch, got valid=%v reason=%q", result.Valid, result.Reason)
	}
}

func TestVerifyRejectsChallengeMismatch(t *testing.T) {
	_, _, b, head := buildTestBundle(t)
	authority := &fakeAuthority{leaseOK: true, head: head}
	wrongChallenge, err := NewChallenge()
	if err != nil {
		t.Fatalf("NewChallenge: %v", err)
	}

	result := Verify(context.Background(), authority, wrongChallenge, b, Policy{RequireLease: true, MaxClockSkew: time.Minute}, time.Now())
	if result.Valid || result.Reason != ReasonChallengeMismatch {
		t.Fatalf("expected ChallengeMismatch, got valid=%v reason=%q", result.Valid, result.Reason)
	}
}

func TestVerifyOfflineFlaggedDistinctly(t *testing.T) {
	_, challenge, b, head := buildTestBundle(t)
	result := VerifyOffline(challenge, b, &head, time.Minute, time.Now())
	if !result.Valid || !result.Offline {
		t.Fatalf("expected offline-valid result, got %+v", result)
	}
}

func TestVerifyOfflineRejectsStaleCachedHead(t *testing.T) {
	_, challenge, b, head := buildTestBundle(t)
	stale := head
	stale.Sequence++
	stale.EntryHash[0] ^= 0xFF

	result := VerifyOffline(challenge, b, &stale, time.Minute, time.Now())
	if result.Valid {
		t.Fatal("expected offline verification to reject an inconsistent cached head")
	}
}

func TestVerifyOfflineRejectsStaleBundle(t *testing.T) {
	_, challenge, b, _ := buildTestBundle(t)
	farFuture := b.BundleTimestamp.Add(time.Hour)
	result := VerifyOffline(challenge, b, nil, time.Minute, farFuture)
	if result.Valid || result.Reason != ReasonStaleBundle {
		t.Fatalf("expected StaleBundle, got valid=%v reason=%q", result.Valid, result.Reason)
	}
}
