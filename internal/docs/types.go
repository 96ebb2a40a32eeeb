package docs

import (
	"errors"
	"time"
)

// Signature request lifecycle states.
const (
	StatusPending   = "pending"
	StatusViewed    = "viewed"
	StatusSigned    = "signed"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Analytics is the per-document scoring sub-object.
type Analytics struct {
	Score  int      `json:"score,omitempty"`
	Issues []string `json:"issues,omitempty"`
}

// Document is a stored file record. Soft deletion flips Archived/ArchivedAt;
// restore clears both.
type Document struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Title         string     `json:"title"`
	FileURL       string     `json:"fileUrl,omitempty"`
	SignedFileURL string     `json:"signedFileUrl,omitempty"`
	Archived      bool       `json:"archived"`
	ArchivedAt    *time.Time `json:"archivedAt,omitempty"`
	ExpiresAt     time.Time  `json:"expiresAt,omitempty"`
	Analytics     Analytics  `json:"analytics,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Recipient identifies one signer by email and display name.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SignatureRequest is one recipient's task against one document. UniqueID is
// the sole authorization credential for unauthenticated recipient access.
type SignatureRequest struct {
	ID              string     `json:"id"`
	UniqueID        string     `json:"uniqueId"`
	DocumentID      string     `json:"documentId"`
	DocumentTitle   string     `json:"documentTitle,omitempty"`
	SenderID        string     `json:"senderId"`
	RecipientEmail  string     `json:"recipientEmail"`
	RecipientName   string     `json:"recipientName"`
	Message         string     `json:"message,omitempty"`
	Status          string     `json:"status"`
	BulkSendBatchID string     `json:"bulkSendBatchId,omitempty"`
	GroupID         string     `json:"groupId,omitempty"`
	IsGroupSigning  bool       `json:"isGroupSigning"`
	ViewedAt        *time.Time `json:"viewedAt,omitempty"`
	SignedAt        *time.Time `json:"signedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// BulkSend aggregates one batch of signature requests. Counters are written
// at creation and on explicit recompute only; reads return them verbatim.
type BulkSend struct {
	BatchID        string    `json:"batchId"`
	GroupID        string    `json:"groupId"`
	SenderID       string    `json:"senderId"`
	RecipientEmail string    `json:"recipientEmail"`
	RecipientName  string    `json:"recipientName"`
	Message        string    `json:"message,omitempty"`
	DocumentCount  int       `json:"documentCount"`
	SentCount      int       `json:"sentCount"`
	FailedCount    int       `json:"failedCount"`
	PendingCount   int       `json:"pendingCount"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SignatureField places one fillable field for one recipient on one page.
type SignatureField struct {
	RecipientIndex int     `json:"recipientIndex"`
	DocumentID     string  `json:"documentId"`
	Page           int     `json:"page"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Kind           string  `json:"kind"` // signature, initials, date, text
}

// EnvelopeRecipient is one addressee of an envelope with its own capability
// token and the index used to filter signature fields.
type EnvelopeRecipient struct {
	UniqueID       string `json:"uniqueId"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	RecipientIndex int    `json:"recipientIndex"`
	Status         string `json:"status"`
}

// Envelope is a multi-recipient, multi-document send.
type Envelope struct {
	ID              string              `json:"id"`
	UserID          string              `json:"userId"`
	Title           string              `json:"title"`
	DocumentIDs     []string            `json:"documentIds"`
	Recipients      []EnvelopeRecipient `json:"recipients"`
	SignatureFields []SignatureField    `json:"signatureFields,omitempty"`
	ExpiryDate      time.Time           `json:"expiryDate,omitempty"`
	Status          string              `json:"status"`
	CreatedAt       time.Time           `json:"createdAt"`
}

var (
	ErrNotFound     = errors.New("docs: not found")
	ErrExpired      = errors.New("docs: expired")
	ErrInvalidInput = errors.New("docs: invalid input")
)
