package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestCodec(t *testing.T, now func() time.Time) *Codec {
	t.Helper()
	codec, err := NewCodec([]byte("test-secret"), "cliptide-test", 15*time.Minute, 10*24*time.Hour, now)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func TestCodecIssueAndVerify(t *testing.T) {
	codec := newTestCodec(t, nil)

	token, expiresAt, err := codec.Issue("user-1", KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiration, got %v", expiresAt)
	}

	claims, err := codec.Verify(token, KindAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Kind != KindAccess {
		t.Fatalf("unexpected kind: %s", claims.Kind)
	}
}

func TestCodecRejectsExpired(t *testing.T) {
	current := time.Now().UTC()
	clock := func() time.Time { return current }
	codec := newTestCodec(t, clock)

	token, _, err := codec.Issue("user-1", KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	current = current.Add(16 * time.Minute)
	if _, err := codec.Verify(token, KindAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestCodecRejectsMalformed(t *testing.T) {
	codec := newTestCodec(t, nil)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := codec.Verify(token, KindAccess); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Verify(%q): expected ErrTokenMalformed, got %v", token, err)
		}
	}
}

func TestCodecRejectsTamperedSignature(t *testing.T) {
	codec := newTestCodec(t, nil)
	// Same config, different secret: signature must not verify.
	forged, err := NewCodec([]byte("other-secret"), "cliptide-test", 15*time.Minute, 10*24*time.Hour, nil)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	token, _, err := forged.Issue("user-1", KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Verify(token, KindAccess); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for forged token, got %v", err)
	}
}

func TestCodecRejectsKindConfusion(t *testing.T) {
	codec := newTestCodec(t, nil)

	access, _, err := codec.Issue("user-1", KindAccess)
	if err != nil {
		t.Fatalf("Issue access: %v", err)
	}
	refresh, _, err := codec.Issue("user-1", KindRefresh)
	if err != nil {
		t.Fatalf("Issue refresh: %v", err)
	}

	// An access token presented where a refresh token is expected (and the
	// reverse) must be rejected, or a stolen access token could be replayed
	// as a refresh token.
	if _, err := codec.Verify(access, KindRefresh); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("access-as-refresh: expected ErrTokenMalformed, got %v", err)
	}
	if _, err := codec.Verify(refresh, KindAccess); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("refresh-as-access: expected ErrTokenMalformed, got %v", err)
	}
}

func TestCodecRefreshHorizonOutlivesAccess(t *testing.T) {
	codec := newTestCodec(t, nil)

	_, accessExp, err := codec.Issue("user-1", KindAccess)
	if err != nil {
		t.Fatalf("Issue access: %v", err)
	}
	_, refreshExp, err := codec.Issue("user-1", KindRefresh)
	if err != nil {
		t.Fatalf("Issue refresh: %v", err)
	}
	if !refreshExp.After(accessExp) {
		t.Fatalf("refresh horizon %v should outlive access horizon %v", refreshExp, accessExp)
	}
}

func TestCodecIssueRequiresPrincipal(t *testing.T) {
	codec := newTestCodec(t, nil)
	if _, _, err := codec.Issue("  ", KindAccess); err == nil {
		t.Fatal("expected error for blank principal id")
	}
}

func TestCodecTokensAreUnique(t *testing.T) {
	codec := newTestCodec(t, nil)
	first, _, err := codec.Issue("user-1", KindRefresh)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, _, err := codec.Issue("user-1", KindRefresh)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// Rotation relies on successive refresh tokens being distinct values.
	if strings.Compare(first, second) == 0 {
		t.Fatal("expected distinct token values for successive issues")
	}
}
