package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/ids"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Profiles(ctx context.Context) ProfileStore
}

// UserStore manages account records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// ProfileStore manages mutable profile records.
type ProfileStore interface {
	Upsert(ctx context.Context, p *Profile) error
	Find(ctx context.Context, userID string) (*Profile, error)
}

// InMemoryStore implements Store for tests and DSN-less boots.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*User
	byEmail  map[string]string
	profiles map[string]*Profile
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]*User),
		byEmail:  make(map[string]string),
		profiles: make(map[string]*Profile),
	}
}

func (s *InMemoryStore) Users(ctx context.Context) UserStore       { return (*memUserStore)(s) }
func (s *InMemoryStore) Profiles(ctx context.Context) ProfileStore { return (*memProfileStore)(s) }

type memUserStore InMemoryStore

func (s *memUserStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		return ErrInvalidInput
	}
	if _, ok := s.byEmail[email]; ok {
		return ErrAlreadyExists
	}
	if u.ID == "" {
		u.ID = ids.WithPrefix("usr")
	}
	if u.Plan == "" {
		u.Plan = PlanFree
	}
	if u.Status == "" {
		u.Status = "active"
	}
	now := time.Now().UTC()
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.users[u.ID] = &cp
	s.byEmail[email] = u.ID
	return nil
}

func (s *memUserStore) Find(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

type memProfileStore InMemoryStore

func (s *memProfileStore) Upsert(ctx context.Context, p *Profile) error {
	if p.UserID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}

func (s *memProfileStore) Find(ctx context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}
