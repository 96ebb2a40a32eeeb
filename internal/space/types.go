package space

import (
	"errors"
	"time"
)

// Role is a space membership role. Stored role strings are free-form and get
// normalized at read time via NormalizeRole.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
	RoleNone   Role = "none"
)

// Member is one space membership entry.
type Member struct {
	Email    string    `json:"email"`
	UserID   string    `json:"userId,omitempty"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// NDASettings gates viewing behind an agreement.
type NDASettings struct {
	Enabled bool   `json:"enabled"`
	Title   string `json:"title,omitempty"`
	Text    string `json:"text,omitempty"`
	Version int    `json:"version,omitempty"`
}

// NDASignature records that an email already signed the space NDA.
type NDASignature struct {
	Email    string    `json:"email"`
	SignedAt time.Time `json:"signedAt"`
	Version  int       `json:"version,omitempty"`
}

// Folder is a named subdivision of a space.
type Folder struct {
	ID        string    `json:"id"`
	SpaceID   string    `json:"spaceId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// FolderPermission grants an email time-boxed access to one folder,
// independent of space membership. When present it strictly overrides
// role-based defaults, whether more or less permissive.
type FolderPermission struct {
	ID          string    `json:"id"`
	SpaceID     string    `json:"spaceId"`
	FolderID    string    `json:"folderId"`
	Email       string    `json:"email"`
	CanView     bool      `json:"canView"`
	CanDownload bool      `json:"canDownload"`
	CanUpload   bool      `json:"canUpload"`
	ExpiresAt   time.Time `json:"expiresAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Space is a shared data room with role-based membership.
type Space struct {
	ID                string             `json:"id"`
	UserID            string             `json:"userId"` // implicit owner
	Name              string             `json:"name"`
	Members           []Member           `json:"members"`
	FolderPermissions []FolderPermission `json:"folderPermissions,omitempty"`
	NDASettings       NDASettings        `json:"ndaSettings"`
	NDASignatures     []NDASignature     `json:"ndaSignatures,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// Invitation is a pending membership offer addressed by an unguessable token.
type Invitation struct {
	Token     string    `json:"token"`
	SpaceID   string    `json:"spaceId"`
	SpaceName string    `json:"spaceName"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	InvitedBy string    `json:"invitedBy"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// NDAAcceptance is the immutable record behind one acceptance certificate.
// Certificates are rendered from it on demand, never stored as files.
type NDAAcceptance struct {
	CertificateID string    `json:"certificateId"`
	SpaceID       string    `json:"spaceId"`
	DocumentTitle string    `json:"documentTitle"`
	SignerEmail   string    `json:"signerEmail"`
	SignerName    string    `json:"signerName,omitempty"`
	IPAddress     string    `json:"ipAddress,omitempty"`
	UserAgent     string    `json:"userAgent,omitempty"`
	NDAVersion    int       `json:"ndaVersion"`
	NDAText       string    `json:"ndaText"`
	AcceptedAt    time.Time `json:"acceptedAt"`
}

var (
	ErrNotFound      = errors.New("space: not found")
	ErrForbidden     = errors.New("space: forbidden")
	ErrAccessExpired = errors.New("space: access expired")
	ErrInvalidInput  = errors.New("space: invalid input")
	ErrAlreadyExists = errors.New("space: already exists")
)
