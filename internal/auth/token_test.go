package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	codec, err := NewTokenCodec("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	token, expiresAt, err := codec.Generate("user-1", "alice", []string{"ADMIN", "ADMIN", "VIEWER"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, err := codec.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Username != "alice" {
		t.Fatalf("unexpected username: %s", claims.Username)
	}
	if len(claims.Roles) != 2 {
		t.Fatalf("expected deduplicated roles, got %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Fatalf("expected a token id")
	}
}

func TestTokenParseFailuresCollapse(t *testing.T) {
	codec, err := NewTokenCodec("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	other, err := NewTokenCodec("other-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	foreign, _, err := other.Generate("user-1", "alice", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"wrong secret": foreign,
	} {
		if _, err := codec.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestTokenExpiry(t *testing.T) {
	now := time.Now().UTC()
	codec, err := NewTokenCodec("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	codec.WithClock(func() time.Time { return now })

	token, _, err := codec.Generate("user-1", "alice", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := codec.Parse(token); err != nil {
		t.Fatalf("token should verify before expiry: %v", err)
	}

	codec.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	if _, err := codec.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestTokenIssuedInFuture(t *testing.T) {
	now := time.Now().UTC()
	issuerCodec, err := NewTokenCodec("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	issuerCodec.WithClock(func() time.Time { return now.Add(time.Hour) })

	token, _, err := issuerCodec.Generate("user-1", "alice", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	verifier, err := NewTokenCodec("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	verifier.WithClock(func() time.Time { return now })
	if _, err := verifier.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for future issued-at, got %v", err)
	}
}
