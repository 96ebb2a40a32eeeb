package docs

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/captoken"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/ids"
)

// BulkSendInput carries everything needed to fan one send out into a batch.
type BulkSendInput struct {
	SenderID    string
	DocumentIDs []string
	Recipient   Recipient
	Message     string
}

// BulkSendResult is the batch aggregate with the created requests.
type BulkSendResult struct {
	BulkSend          BulkSend           `json:"bulkSend"`
	SignatureRequests []SignatureRequest `json:"signatureRequests"`
}

// Service defines document, signature-request, bulk-send and envelope
// operations.
type Service interface {
	CreateDocument(ctx context.Context, doc Document) (Document, error)
	GetDocument(ctx context.Context, id, ownerID string) (Document, error)
	ListDocuments(ctx context.Context, ownerID string, archived bool) ([]Document, error)
	ArchiveDocument(ctx context.Context, id, ownerID string) (Document, error)
	RestoreDocument(ctx context.Context, id, ownerID string) (Document, error)

	CreateBulkSend(ctx context.Context, in BulkSendInput, idemKey string) (BulkSendResult, error)
	GetBulkSend(ctx context.Context, batchID, ownerID string) (BulkSend, error)
	RecomputeBulkSend(ctx context.Context, batchID, ownerID string) (BulkSend, error)

	SignatureRequestByToken(ctx context.Context, uniqueID string) (SignatureRequest, error)
	MarkViewed(ctx context.Context, uniqueID string) (SignatureRequest, error)
	MarkSigned(ctx context.Context, uniqueID string) (SignatureRequest, error)

	CreateEnvelope(ctx context.Context, env Envelope) (Envelope, error)
	EnvelopeByToken(ctx context.Context, uniqueID string) (Envelope, EnvelopeRecipient, error)
}

// InMemory implements Service with in-process concurrency safety. Unlike the
// Postgres store, the bulk-send fan-out here is atomic by construction.
type InMemory struct {
	mu        sync.RWMutex
	documents map[string]*Document
	requests  map[string]*SignatureRequest // uniqueId -> request
	batches   map[string]*BulkSend
	envelopes map[string]*Envelope
	envTokens map[string]string // recipient uniqueId -> envelope id
	idem      map[string]string // idemKey -> batchId
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty document store.
func NewInMemory() *InMemory {
	return &InMemory{
		documents: make(map[string]*Document),
		requests:  make(map[string]*SignatureRequest),
		batches:   make(map[string]*BulkSend),
		envelopes: make(map[string]*Envelope),
		envTokens: make(map[string]string),
		idem:      make(map[string]string),
	}
}

func (s *InMemory) CreateDocument(ctx context.Context, doc Document) (Document, error) {
	doc.Title = strings.TrimSpace(doc.Title)
	if doc.UserID == "" || doc.Title == "" {
		return Document{}, ErrInvalidInput
	}
	now := time.Now().UTC()
	if doc.ID == "" {
		doc.ID = ids.WithPrefix("doc")
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := doc
	s.documents[doc.ID] = &cp
	return doc, nil
}

// GetDocument returns the document only when ownerID matches; a foreign or
// missing id is indistinguishable to the caller.
func (s *InMemory) GetDocument(ctx context.Context, id, ownerID string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok || doc.UserID != ownerID {
		return Document{}, ErrNotFound
	}
	return *doc, nil
}

func (s *InMemory) ListDocuments(ctx context.Context, ownerID string, archived bool) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Document
	for _, doc := range s.documents {
		if doc.UserID != ownerID || doc.Archived != archived {
			continue
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (s *InMemory) ArchiveDocument(ctx context.Context, id, ownerID string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok || doc.UserID != ownerID {
		return Document{}, ErrNotFound
	}
	if !doc.Archived {
		now := time.Now().UTC()
		doc.Archived = true
		doc.ArchivedAt = &now
		doc.UpdatedAt = now
	}
	return *doc, nil
}

// RestoreDocument clears the archive flags. Restoring an already-restored
// document is a no-op that still succeeds.
func (s *InMemory) RestoreDocument(ctx context.Context, id, ownerID string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok || doc.UserID != ownerID {
		return Document{}, ErrNotFound
	}
	if doc.Archived {
		doc.Archived = false
		doc.ArchivedAt = nil
		doc.UpdatedAt = time.Now().UTC()
	}
	return *doc, nil
}

func (s *InMemory) CreateBulkSend(ctx context.Context, in BulkSendInput, idemKey string) (BulkSendResult, error) {
	if len(in.DocumentIDs) == 0 {
		return BulkSendResult{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Recipient.Email) == "" || strings.TrimSpace(in.Recipient.Name) == "" {
		return BulkSendResult{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idemKey != "" {
		if batchID, ok := s.idem[idemKey]; ok {
			return s.batchResultLocked(batchID), nil
		}
	}

	// Every id must resolve to a caller-owned document or the whole call fails.
	resolved := make([]*Document, 0, len(in.DocumentIDs))
	for _, id := range in.DocumentIDs {
		doc, ok := s.documents[id]
		if !ok || doc.UserID != in.SenderID {
			return BulkSendResult{}, ErrNotFound
		}
		resolved = append(resolved, doc)
	}

	now := time.Now().UTC()
	batchID := ids.WithPrefix("batch")
	groupID := ids.WithPrefix("grp")

	requests := make([]SignatureRequest, 0, len(resolved))
	for _, doc := range resolved {
		req := SignatureRequest{
			ID:              ids.WithPrefix("sig"),
			UniqueID:        captoken.New().String(),
			DocumentID:      doc.ID,
			DocumentTitle:   doc.Title,
			SenderID:        in.SenderID,
			RecipientEmail:  strings.ToLower(strings.TrimSpace(in.Recipient.Email)),
			RecipientName:   strings.TrimSpace(in.Recipient.Name),
			Message:         in.Message,
			Status:          StatusPending,
			BulkSendBatchID: batchID,
			GroupID:         groupID,
			IsGroupSigning:  true,
			CreatedAt:       now,
		}
		cp := req
		s.requests[req.UniqueID] = &cp
		requests = append(requests, req)
	}

	batch := BulkSend{
		BatchID:        batchID,
		GroupID:        groupID,
		SenderID:       in.SenderID,
		RecipientEmail: strings.ToLower(strings.TrimSpace(in.Recipient.Email)),
		RecipientName:  strings.TrimSpace(in.Recipient.Name),
		Message:        in.Message,
		DocumentCount:  len(requests),
		SentCount:      len(requests),
		PendingCount:   len(requests),
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	cp := batch
	s.batches[batchID] = &cp
	if idemKey != "" {
		s.idem[idemKey] = batchID
	}

	return BulkSendResult{BulkSend: batch, SignatureRequests: requests}, nil
}

func (s *InMemory) batchResultLocked(batchID string) BulkSendResult {
	res := BulkSendResult{}
	if b, ok := s.batches[batchID]; ok {
		res.BulkSend = *b
	}
	for _, req := range s.requests {
		if req.BulkSendBatchID == batchID {
			res.SignatureRequests = append(res.SignatureRequests, *req)
		}
	}
	return res
}

// GetBulkSend returns the stored counters verbatim; it does not recompute
// them from live signature-request state.
func (s *InMemory) GetBulkSend(ctx context.Context, batchID, ownerID string) (BulkSend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[batchID]
	if !ok || b.SenderID != ownerID {
		return BulkSend{}, ErrNotFound
	}
	return *b, nil
}

// RecomputeBulkSend re-derives the counters by partitioning the batch's
// signature requests by status, then persists them.
func (s *InMemory) RecomputeBulkSend(ctx context.Context, batchID, ownerID string) (BulkSend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok || b.SenderID != ownerID {
		return BulkSend{}, ErrNotFound
	}
	var pending, failed, signed int
	for _, req := range s.requests {
		if req.BulkSendBatchID != batchID {
			continue
		}
		switch req.Status {
		case StatusFailed:
			failed++
		case StatusSigned, StatusCompleted:
			signed++
		default:
			pending++
		}
	}
	b.PendingCount = pending
	b.FailedCount = failed
	b.SentCount = pending + failed + signed
	if pending == 0 && failed == 0 {
		b.Status = StatusCompleted
	}
	b.UpdatedAt = time.Now().UTC()
	return *b, nil
}

func (s *InMemory) SignatureRequestByToken(ctx context.Context, uniqueID string) (SignatureRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[uniqueID]
	if !ok {
		return SignatureRequest{}, ErrNotFound
	}
	return *req, nil
}

func (s *InMemory) MarkViewed(ctx context.Context, uniqueID string) (SignatureRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[uniqueID]
	if !ok {
		return SignatureRequest{}, ErrNotFound
	}
	if req.Status == StatusPending {
		now := time.Now().UTC()
		req.Status = StatusViewed
		req.ViewedAt = &now
	}
	return *req, nil
}

func (s *InMemory) MarkSigned(ctx context.Context, uniqueID string) (SignatureRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[uniqueID]
	if !ok {
		return SignatureRequest{}, ErrNotFound
	}
	if req.Status != StatusSigned && req.Status != StatusCompleted {
		now := time.Now().UTC()
		req.Status = StatusSigned
		req.SignedAt = &now
		if req.ViewedAt == nil {
			req.ViewedAt = &now
		}
	}
	return *req, nil
}

func (s *InMemory) CreateEnvelope(ctx context.Context, env Envelope) (Envelope, error) {
	if env.UserID == "" || len(env.DocumentIDs) == 0 || len(env.Recipients) == 0 {
		return Envelope{}, ErrInvalidInput
	}
	now := time.Now().UTC()
	if env.ID == "" {
		env.ID = ids.WithPrefix("env")
	}
	env.Status = StatusPending
	env.CreatedAt = now
	for i := range env.Recipients {
		env.Recipients[i].RecipientIndex = i
		env.Recipients[i].Status = StatusPending
		if env.Recipients[i].UniqueID == "" {
			env.Recipients[i].UniqueID = captoken.New().String()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := env
	s.envelopes[env.ID] = &cp
	for _, rcp := range env.Recipients {
		s.envTokens[rcp.UniqueID] = env.ID
	}
	return env, nil
}

// EnvelopeByToken resolves a recipient capability token to its envelope and
// the matching recipient entry. Expiry is the caller's concern.
func (s *InMemory) EnvelopeByToken(ctx context.Context, uniqueID string) (Envelope, EnvelopeRecipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	envID, ok := s.envTokens[uniqueID]
	if !ok {
		return Envelope{}, EnvelopeRecipient{}, ErrNotFound
	}
	env, ok := s.envelopes[envID]
	if !ok {
		return Envelope{}, EnvelopeRecipient{}, ErrNotFound
	}
	for _, rcp := range env.Recipients {
		if rcp.UniqueID == uniqueID {
			return *env, rcp, nil
		}
	}
	return Envelope{}, EnvelopeRecipient{}, ErrNotFound
}

// FieldsForRecipient filters the envelope's signature fields down to one
// recipient index.
func (e Envelope) FieldsForRecipient(index int) []SignatureField {
	var out []SignatureField
	for _, f := range e.SignatureFields {
		if f.RecipientIndex == index {
			out = append(out, f)
		}
	}
	return out
}
