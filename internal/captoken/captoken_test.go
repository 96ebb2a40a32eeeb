package captoken

import (
	"errors"
	"testing"
	"time"
)

func TestNewTokensAreUniqueAndParseable(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Fatal("tokens must be unguessable and unique")
	}
	if _, err := Parse(a.String()); err != nil {
		t.Fatalf("fresh token should parse: %v", err)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "../etc/passwd", "12345678-not-a-uuid"} {
		if _, err := Parse(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestParseTrimsWhitespace(t *testing.T) {
	tok := New()
	got, err := Parse("  " + tok.String() + "\n")
	if err != nil {
		t.Fatal(err)
	}
	if got != tok {
		t.Fatalf("Parse returned %q, want %q", got, tok)
	}
}

func TestValidityCheck(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	if err := (Validity{}).Check(now); err != nil {
		t.Fatalf("zero validity must never expire: %v", err)
	}
	if err := (Validity{ExpiresAt: now.Add(time.Hour)}).Check(now); err != nil {
		t.Fatalf("future expiry should pass: %v", err)
	}
	if err := (Validity{ExpiresAt: now.Add(-time.Second)}).Check(now); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	// The boundary instant is still valid.
	if err := (Validity{ExpiresAt: now}).Check(now); err != nil {
		t.Fatalf("boundary instant should pass: %v", err)
	}
}
