package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokensIssueAndParseRoundTrip(t *testing.T) {
	tokens, err := NewTokens([]byte("test-secret"), "test-issuer", nil)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	signed, issued, err := tokens.Issue(42, RoleCSR, 30*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.TokenID == "" {
		t.Fatalf("expected token id")
	}

	claims, err := tokens.Parse(signed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("unexpected user id: %d", claims.UserID)
	}
	if claims.Role != RoleCSR {
		t.Fatalf("unexpected role: %s", claims.Role)
	}
	if claims.TokenID != issued.TokenID {
		t.Fatalf("token id mismatch: %s vs %s", claims.TokenID, issued.TokenID)
	}
}

func TestTokensRejectsTampering(t *testing.T) {
	tokens, err := NewTokens([]byte("test-secret"), "", nil)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	signed, _, err := tokens.Issue(7, RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Flip a payload byte.
	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	payload := []byte(parts[1])
	payload[0] ^= 0x01
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := tokens.Parse(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokensRejectsForeignSignature(t *testing.T) {
	issuerA, _ := NewTokens([]byte("secret-a"), "", nil)
	issuerB, _ := NewTokens([]byte("secret-b"), "", nil)

	signed, _, err := issuerA.Issue(1, RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuerB.Parse(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokensExpiredIsDistinct(t *testing.T) {
	current := time.Now().UTC()
	tokens, err := NewTokens([]byte("test-secret"), "", func() time.Time { return current })
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	signed, issued, err := tokens.Issue(9, RolePersonInNeed, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	current = current.Add(2 * time.Minute)
	claims, err := tokens.Parse(signed)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired must not be reported as invalid")
	}
	// The signature was valid, so the claims still identify the session.
	if claims.TokenID != issued.TokenID {
		t.Fatalf("expired parse lost the token id: %q != %q", claims.TokenID, issued.TokenID)
	}
}

func TestTokensRejectsGarbage(t *testing.T) {
	tokens, _ := NewTokens([]byte("test-secret"), "", nil)
	for _, raw := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, err := tokens.Parse(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Parse(%q): expected ErrInvalidToken, got %v", raw, err)
		}
	}
}
