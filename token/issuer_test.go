package token

import (
	"errors"
	"testing"
	"time"
)

func testIssuer(accessTTL time.Duration) *Issuer {
	return NewIssuer(Config{
		AccessSecret: []byte("test-access-secret"),
		AccessTTL:    accessTTL,
		RefreshTTL:   24 * time.Hour,
	})
}

func TestIssueAndVerify(t *testing.T) {
	issuer := testIssuer(15 * time.Minute)

	pair, err := issuer.Issue(Principal{
		UserID:   "u1",
		TenantID: "t1",
		Role:     "member",
		Email:    "a@x.com",
	})
	if err != nil {
		t.Fatalf("failed to issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be set")
	}

	claims, err := issuer.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("failed to verify: %v", err)
	}

	p := claims.Principal()
	if p.UserID != "u1" || p.TenantID != "t1" || p.Role != "member" || p.Email != "a@x.com" {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestVerifyExpired(t *testing.T) {
	issuer := testIssuer(-time.Minute)

	pair, err := issuer.Issue(Principal{UserID: "u1", TenantID: "t1"})
	if err != nil {
		t.Fatalf("failed to issue: %v", err)
	}

	_, err = issuer.Verify(pair.AccessToken)
	if !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := testIssuer(15 * time.Minute)
	other := NewIssuer(Config{AccessSecret: []byte("different-secret")})

	pair, err := issuer.Issue(Principal{UserID: "u1", TenantID: "t1"})
	if err != nil {
		t.Fatalf("failed to issue: %v", err)
	}

	_, err = other.Verify(pair.AccessToken)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	issuer := testIssuer(15 * time.Minute)
	if _, err := issuer.Verify("not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestRefreshTokensAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewRefreshToken()
		if err != nil {
			t.Fatalf("failed to generate: %v", err)
		}
		if seen[tok] {
			t.Fatal("generated duplicate refresh token")
		}
		seen[tok] = true
	}
}
