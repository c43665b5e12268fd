package auth

import (
	"testing"
	"time"

	"clinic-concierge/internal/config"
)

func TestIssueAndVerifyOpsToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:   "secret",
		JWTIssuer:   "clinic-concierge",
		OpsTokenTTL: 12 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.Issue(now, "on-call")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok == "" {
		t.Fatalf("expected token string")
	}

	claims, err := m.Verify(tok, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "on-call" || claims.TokenType != TokenTypeOps {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyHonorsSuppliedClock(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", OpsTokenTTL: time.Hour})
	issued := time.Unix(1000000000, 0).UTC() // far in the past by wall time
	tok, err := m.Issue(issued, "on-call")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Within the TTL relative to the supplied clock the token is valid,
	// regardless of wall time.
	if _, err := m.Verify(tok, issued.Add(30*time.Minute)); err != nil {
		t.Fatalf("verify within ttl: %v", err)
	}
	// Past the TTL relative to the same clock it is not.
	if _, err := m.Verify(tok, issued.Add(2*time.Hour)); err == nil {
		t.Fatalf("expected expiry relative to supplied clock")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", OpsTokenTTL: time.Minute})
	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.Issue(now, "on-call")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, now.Add(2*time.Hour)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	a, _ := NewManager(config.AuthConfig{JWTSecret: "secret-a", OpsTokenTTL: time.Hour})
	b, _ := NewManager(config.AuthConfig{JWTSecret: "secret-b", OpsTokenTTL: time.Hour})
	tok, err := a.Issue(time.Now(), "on-call")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.Verify(tok, time.Now()); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(config.AuthConfig{OpsTokenTTL: time.Hour}); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
