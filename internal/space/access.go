package space

import (
	"strings"
	"time"
)

// Capabilities are the derived rights attached to an access decision.
type Capabilities struct {
	CanView          bool `json:"canView"`
	CanDownload      bool `json:"canDownload"`
	CanUpload        bool `json:"canUpload"`
	CanDelete        bool `json:"canDelete"`
	CanManageMembers bool `json:"canManageMembers"`
}

// Decision is the outcome of resolving one caller against a space/folder.
type Decision struct {
	HasAccess    bool         `json:"hasAccess"`
	Role         Role         `json:"role"`
	Capabilities Capabilities `json:"capabilities"`
	Watermark    bool         `json:"watermark"`
	Reason       string       `json:"reason,omitempty"`
}

// NormalizeRole is the single source of truth for role strings. Stored roles
// are case-normalized here, at read time, never at write time. Unknown or
// missing roles collapse to viewer.
func NormalizeRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleOwner:
		return RoleOwner
	case RoleAdmin:
		return RoleAdmin
	case RoleEditor:
		return RoleEditor
	case RoleViewer, Role(""):
		return RoleViewer
	default:
		return RoleViewer
	}
}

// CapabilitiesFor maps a role to its space-wide capability set.
func CapabilitiesFor(role Role) Capabilities {
	switch role {
	case RoleOwner, RoleAdmin:
		return Capabilities{
			CanView:          true,
			CanDownload:      true,
			CanUpload:        true,
			CanDelete:        true,
			CanManageMembers: true,
		}
	case RoleEditor:
		return Capabilities{
			CanView:     true,
			CanDownload: true,
			CanUpload:   true,
		}
	case RoleViewer:
		return Capabilities{CanView: true, CanDownload: true}
	default:
		return Capabilities{}
	}
}

// MemberRole returns the normalized role of email within the space, or
// RoleNone when email is neither the owner nor a member. The recorded owner
// is matched by user id elsewhere; email matching here is case-insensitive.
func (s *Space) MemberRole(email string) Role {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return RoleNone
	}
	for _, m := range s.Members {
		if strings.ToLower(strings.TrimSpace(m.Email)) == email {
			return NormalizeRole(m.Role)
		}
	}
	return RoleNone
}

// folderGrant finds the folder-specific grant for email on folderID, if any.
func (s *Space) folderGrant(folderID, email string) (FolderPermission, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, g := range s.FolderPermissions {
		if g.FolderID == folderID && strings.ToLower(strings.TrimSpace(g.Email)) == email {
			return g, true
		}
	}
	return FolderPermission{}, false
}

// ResolveAccess decides the caller's access to a space, or to one folder
// within it when folderID is non-empty. First match wins:
//
//  1. recorded owner (by user id) — full access, no watermark;
//  2. folder-specific grant — expired grants deny outright, live grants
//     apply their stored flags even when more restrictive than the role;
//  3. space member with role owner/admin/editor;
//  4. deny.
//
// An expired folder grant denies access even if the caller would otherwise
// qualify through a space role.
func ResolveAccess(s *Space, folderID, userID, userEmail string, now time.Time) Decision {
	if s == nil {
		return Decision{Role: RoleNone, Reason: "No permission for this folder"}
	}

	if userID != "" && s.UserID == userID {
		return Decision{
			HasAccess:    true,
			Role:         RoleOwner,
			Capabilities: CapabilitiesFor(RoleOwner),
		}
	}

	if folderID != "" {
		if grant, ok := s.folderGrant(folderID, userEmail); ok {
			if !grant.ExpiresAt.IsZero() && now.After(grant.ExpiresAt) {
				return Decision{Role: RoleNone, Reason: "Access expired"}
			}
			return Decision{
				HasAccess: true,
				Role:      s.MemberRole(userEmail),
				Capabilities: Capabilities{
					CanView:     grant.CanView,
					CanDownload: grant.CanDownload,
					CanUpload:   grant.CanUpload,
				},
				Watermark: true,
			}
		}
	}

	role := s.MemberRole(userEmail)
	switch role {
	case RoleOwner, RoleAdmin, RoleEditor:
		return Decision{
			HasAccess: true,
			Role:      role,
			Capabilities: Capabilities{
				CanView:          true,
				CanDownload:      true,
				CanUpload:        true,
				CanDelete:        role != RoleEditor,
				CanManageMembers: role != RoleEditor,
			},
			Watermark: role == RoleEditor,
		}
	}

	return Decision{Role: RoleNone, Reason: "No permission for this folder"}
}

// NeedsNDA reports whether email must accept the space NDA before viewing.
// Owners bypass their own gate regardless of settings.
func NeedsNDA(s *Space, userID, email string) bool {
	if s == nil || !s.NDASettings.Enabled {
		return false
	}
	if userID != "" && s.UserID == userID {
		return false
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, sig := range s.NDASignatures {
		if strings.ToLower(strings.TrimSpace(sig.Email)) == email {
			return false
		}
	}
	return true
}
