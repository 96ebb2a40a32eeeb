package space

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/captoken"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/ids"
)

// Service defines data-room operations.
type Service interface {
	CreateSpace(ctx context.Context, ownerID, ownerEmail, name string) (Space, error)
	GetSpace(ctx context.Context, id string) (Space, error)
	AddMember(ctx context.Context, spaceID string, member Member) (Space, error)
	SetMemberRole(ctx context.Context, spaceID, email, role string) (Space, error)
	CreateFolder(ctx context.Context, spaceID, name string) (Folder, error)
	GrantFolderPermission(ctx context.Context, grant FolderPermission) (FolderPermission, error)
	SetNDASettings(ctx context.Context, spaceID string, settings NDASettings) (Space, error)

	CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
	GetInvitation(ctx context.Context, token string) (Invitation, error)

	AcceptNDA(ctx context.Context, acceptance NDAAcceptance) (NDAAcceptance, error)
	GetNDAAcceptance(ctx context.Context, certificateID string) (NDAAcceptance, error)
}

// InMemory implements Service with in-process concurrency safety.
// The Postgres store mirrors this behavior for durable deployments.
type InMemory struct {
	mu          sync.RWMutex
	spaces      map[string]*Space
	folders     map[string]*Folder
	invitations map[string]Invitation
	acceptances map[string]NDAAcceptance
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty space store.
func NewInMemory() *InMemory {
	return &InMemory{
		spaces:      make(map[string]*Space),
		folders:     make(map[string]*Folder),
		invitations: make(map[string]Invitation),
		acceptances: make(map[string]NDAAcceptance),
	}
}

func (s *InMemory) CreateSpace(ctx context.Context, ownerID, ownerEmail, name string) (Space, error) {
	name = strings.TrimSpace(name)
	if ownerID == "" || name == "" {
		return Space{}, ErrInvalidInput
	}
	now := time.Now().UTC()
	sp := &Space{
		ID:     ids.WithPrefix("sp"),
		UserID: ownerID,
		Name:   name,
		Members: []Member{{
			Email:    strings.ToLower(strings.TrimSpace(ownerEmail)),
			UserID:   ownerID,
			Role:     string(RoleOwner),
			JoinedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaces[sp.ID] = sp
	return cloneSpace(sp), nil
}

func (s *InMemory) GetSpace(ctx context.Context, id string) (Space, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.spaces[id]
	if !ok {
		return Space{}, ErrNotFound
	}
	return cloneSpace(sp), nil
}

func (s *InMemory) AddMember(ctx context.Context, spaceID string, member Member) (Space, error) {
	member.Email = strings.ToLower(strings.TrimSpace(member.Email))
	if member.Email == "" {
		return Space{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[spaceID]
	if !ok {
		return Space{}, ErrNotFound
	}
	for _, m := range sp.Members {
		if strings.EqualFold(m.Email, member.Email) {
			return Space{}, ErrAlreadyExists
		}
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}
	// Role strings are stored as provided; normalization happens at read time.
	sp.Members = append(sp.Members, member)
	sp.UpdatedAt = time.Now().UTC()
	return cloneSpace(sp), nil
}

func (s *InMemory) SetMemberRole(ctx context.Context, spaceID, email, role string) (Space, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[spaceID]
	if !ok {
		return Space{}, ErrNotFound
	}
	for i := range sp.Members {
		if strings.EqualFold(sp.Members[i].Email, email) {
			sp.Members[i].Role = role
			sp.UpdatedAt = time.Now().UTC()
			return cloneSpace(sp), nil
		}
	}
	return Space{}, ErrNotFound
}

func (s *InMemory) CreateFolder(ctx context.Context, spaceID, name string) (Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Folder{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spaces[spaceID]; !ok {
		return Folder{}, ErrNotFound
	}
	f := &Folder{
		ID:        ids.WithPrefix("fld"),
		SpaceID:   spaceID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	s.folders[f.ID] = f
	return *f, nil
}

func (s *InMemory) GrantFolderPermission(ctx context.Context, grant FolderPermission) (FolderPermission, error) {
	grant.Email = strings.ToLower(strings.TrimSpace(grant.Email))
	if grant.Email == "" || grant.FolderID == "" {
		return FolderPermission{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[grant.SpaceID]
	if !ok {
		return FolderPermission{}, ErrNotFound
	}
	if f, ok := s.folders[grant.FolderID]; !ok || f.SpaceID != grant.SpaceID {
		return FolderPermission{}, ErrNotFound
	}
	if grant.ID == "" {
		grant.ID = ids.WithPrefix("fp")
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
	// Re-granting replaces an existing grant for the same folder and email.
	kept := sp.FolderPermissions[:0]
	for _, g := range sp.FolderPermissions {
		if g.FolderID == grant.FolderID && strings.EqualFold(g.Email, grant.Email) {
			continue
		}
		kept = append(kept, g)
	}
	sp.FolderPermissions = append(kept, grant)
	sp.UpdatedAt = time.Now().UTC()
	return grant, nil
}

func (s *InMemory) SetNDASettings(ctx context.Context, spaceID string, settings NDASettings) (Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[spaceID]
	if !ok {
		return Space{}, ErrNotFound
	}
	if settings.Version == 0 {
		settings.Version = sp.NDASettings.Version + 1
	}
	sp.NDASettings = settings
	sp.UpdatedAt = time.Now().UTC()
	return cloneSpace(sp), nil
}

func (s *InMemory) CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error) {
	if inv.SpaceID == "" || strings.TrimSpace(inv.Email) == "" {
		return Invitation{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[inv.SpaceID]
	if !ok {
		return Invitation{}, ErrNotFound
	}
	if inv.Token == "" {
		inv.Token = captoken.New().String()
	}
	inv.SpaceName = sp.Name
	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	s.invitations[inv.Token] = inv
	return inv, nil
}

func (s *InMemory) GetInvitation(ctx context.Context, token string) (Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invitations[token]
	if !ok {
		return Invitation{}, ErrNotFound
	}
	return inv, nil
}

func (s *InMemory) AcceptNDA(ctx context.Context, acceptance NDAAcceptance) (NDAAcceptance, error) {
	acceptance.SignerEmail = strings.ToLower(strings.TrimSpace(acceptance.SignerEmail))
	if acceptance.SpaceID == "" || acceptance.SignerEmail == "" {
		return NDAAcceptance{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[acceptance.SpaceID]
	if !ok {
		return NDAAcceptance{}, ErrNotFound
	}
	if acceptance.CertificateID == "" {
		acceptance.CertificateID = ids.WithPrefix("cert")
	}
	if acceptance.AcceptedAt.IsZero() {
		acceptance.AcceptedAt = time.Now().UTC()
	}
	if acceptance.NDAVersion == 0 {
		acceptance.NDAVersion = sp.NDASettings.Version
	}
	if acceptance.NDAText == "" {
		acceptance.NDAText = sp.NDASettings.Text
	}
	sp.NDASignatures = append(sp.NDASignatures, NDASignature{
		Email:    acceptance.SignerEmail,
		SignedAt: acceptance.AcceptedAt,
		Version:  acceptance.NDAVersion,
	})
	sp.UpdatedAt = time.Now().UTC()
	s.acceptances[acceptance.CertificateID] = acceptance
	return acceptance, nil
}

func (s *InMemory) GetNDAAcceptance(ctx context.Context, certificateID string) (NDAAcceptance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.acceptances[certificateID]
	if !ok {
		return NDAAcceptance{}, ErrNotFound
	}
	return acc, nil
}

func cloneSpace(sp *Space) Space {
	out := *sp
	out.Members = append([]Member(nil), sp.Members...)
	out.FolderPermissions = append([]FolderPermission(nil), sp.FolderPermissions...)
	out.NDASignatures = append([]NDASignature(nil), sp.NDASignatures...)
	return out
}
