package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 12 * time.Hour

// Claims are the JWT claims carried by a session token.
type Claims struct {
	Email string `json:"email"`
	Plan  string `json:"plan"`
	jwt.RegisteredClaims
}

// Service resolves bearer tokens and session cookies into identities. The
// signing secret is injected, never read from ambient state.
type Service struct {
	store  Store
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) { s.issuer = strings.TrimSpace(issuer) }
}

// WithTokenTTL configures session token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service around a store and signing secret.
func NewService(store Store, secret string, opts ...ServiceOption) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	svc := &Service{
		store:  store,
		secret: []byte(secret),
		issuer: "signroom",
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates a user with a hashed password and an empty profile.
func (s *Service) Register(ctx context.Context, email, password, name string) (Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Identity{}, ErrInvalidInput
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Identity{}, err
	}
	user := &User{Email: email, PasswordHash: hash, Plan: PlanFree, Status: "active"}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return Identity{}, err
	}
	profile := &Profile{UserID: user.ID, Name: strings.TrimSpace(name)}
	if err := s.store.Profiles(ctx).Upsert(ctx, profile); err != nil {
		return Identity{}, err
	}
	return Identity{ID: user.ID, Email: user.Email, Plan: user.Plan, Name: profile.Name}, nil
}

// IssueToken authenticates credentials and mints a signed session token.
func (s *Service) IssueToken(ctx context.Context, email, password string) (string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", time.Time{}, ErrUnauthorized
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		return "", time.Time{}, ErrUnauthorized
	}
	if user.Status != "active" {
		return "", time.Time{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, ErrUnauthorized
	}

	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := Claims{
		Email: user.Email,
		Plan:  user.Plan,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Authenticate verifies a session token and loads the caller's user and
// profile records. Every verification failure, including a user deleted
// after issuance, collapses to ErrInvalidToken.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return Identity{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, ErrInvalidToken
	}

	user, err := s.store.Users(ctx).Find(ctx, claims.Subject)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	identity := Identity{ID: user.ID, Email: user.Email, Plan: user.Plan}
	if profile, err := s.store.Profiles(ctx).Find(ctx, user.ID); err == nil {
		identity.Name = profile.Name
	}
	return identity, nil
}
