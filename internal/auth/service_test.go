package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	svc, err := NewService(store, "test-secret", opts...)
	if err != nil {
		t.Fatal(err)
	}
	return svc, store
}

func TestNewServiceRequiresSecret(t *testing.T) {
	if _, err := NewService(NewInMemoryStore(), "   "); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestRegisterAndTokenRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.Register(ctx, "User@Example.com", "hunter2!", "Jamie")
	if err != nil {
		t.Fatal(err)
	}
	if id.Email != "user@example.com" || id.Plan != PlanFree {
		t.Fatalf("unexpected identity: %+v", id)
	}

	token, exp, err := svc.IssueToken(ctx, "user@example.com", "hunter2!")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) < 11*time.Hour {
		t.Fatalf("token expiry too short: %v", exp)
	}

	got, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != id.ID || got.Email != id.Email || got.Name != "Jamie" {
		t.Fatalf("authenticated identity mismatch: %+v vs %+v", got, id)
	}
}

func TestIssueTokenWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "a@example.com", "right", ""); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.IssueToken(ctx, "a@example.com", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, _, err := svc.IssueToken(ctx, "missing@example.com", "x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown user, got %v", err)
	}
}

func TestAuthenticateFailuresCollapse(t *testing.T) {
	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()
	if _, err := svc.Register(ctx, "a@example.com", "pw", ""); err != nil {
		t.Fatal(err)
	}
	token, _, err := svc.IssueToken(ctx, "a@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]func() string{
		"empty":     func() string { return "" },
		"garbage":   func() string { return "not-a-jwt" },
		"tampered":  func() string { return token + "x" },
		"wrong key": func() string {
			other, _ := NewService(NewInMemoryStore(), "other-secret")
			_, _ = other.Register(ctx, "a@example.com", "pw", "")
			t2, _, _ := other.IssueToken(ctx, "a@example.com", "pw")
			return t2
		},
	}
	for name, mk := range cases {
		if _, err := svc.Authenticate(ctx, mk()); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}

	// Expired token, same sentinel.
	clock = clock.Add(13 * time.Hour)
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateRejectsWrongIssuer(t *testing.T) {
	svc, _ := newTestService(t, WithIssuer("someone-else"))
	ctx := context.Background()
	if _, err := svc.Register(ctx, "a@example.com", "pw", ""); err != nil {
		t.Fatal(err)
	}

	claims := Claims{
		Email: "a@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "signroom",
			Subject:   "u-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateDeletedUser(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "gone@example.com", "pw", ""); err != nil {
		t.Fatal(err)
	}
	token, _, err := svc.IssueToken(ctx, "gone@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}

	store.mu.Lock()
	for id := range store.users {
		delete(store.users, id)
	}
	store.mu.Unlock()

	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after deletion, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "dup@example.com", "pw", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(ctx, "Dup@Example.com", "pw2", ""); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}
