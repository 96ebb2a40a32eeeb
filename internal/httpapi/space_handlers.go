package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/audit"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/space"
)

// handleSpacesCollection serves POST /v1/spaces.
func (a *API) handleSpacesCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sp, err := a.spaces.CreateSpace(r.Context(), id.ID, id.Email, req.Name)
	if err != nil {
		handleSpaceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "space.created", map[string]any{
		"space_id": sp.ID,
	})
	writeSuccess(w, http.StatusCreated, map[string]any{"space": sp})
}

// handleSpaceResource dispatches /v1/spaces/{id} and its sub-resources:
//
//	GET   /v1/spaces/{id}
//	GET   /v1/spaces/{id}/my-role
//	GET   /v1/spaces/{id}/access?folder={folderId}
//	POST  /v1/spaces/{id}/members
//	PATCH /v1/spaces/{id}/members/{email}/role
//	POST  /v1/spaces/{id}/folders
//	POST  /v1/spaces/{id}/folders/{folderId}/permissions
//	PUT   /v1/spaces/{id}/nda
//	GET   /v1/spaces/{id}/nda/status
//	POST  /v1/spaces/{id}/nda/accept
//	POST  /v1/spaces/{id}/invitations
func (a *API) handleSpaceResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/spaces/")
	spaceID, sub, _ := strings.Cut(rest, "/")
	if spaceID == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	// NDA status/accept are reachable by invited guests without a session.
	switch sub {
	case "nda/status":
		a.ndaStatus(w, r, spaceID)
		return
	case "nda/accept":
		a.ndaAccept(w, r, spaceID)
		return
	}

	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	sp, err := a.spaces.GetSpace(r.Context(), spaceID)
	if err != nil {
		handleSpaceError(w, r, err)
		return
	}
	decision := space.ResolveAccess(&sp, "", id.ID, id.Email, time.Now().UTC())

	switch {
	case sub == "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		// Non-members cannot tell the space exists.
		if !decision.HasAccess && sp.MemberRole(id.Email) == space.RoleNone {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"space": sp})

	case sub == "my-role":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		role := space.RoleNone
		if sp.UserID == id.ID {
			role = space.RoleOwner
		} else {
			role = sp.MemberRole(id.Email)
		}
		writeSuccess(w, http.StatusOK, map[string]any{
			"role":         role,
			"capabilities": space.CapabilitiesFor(role),
		})

	case sub == "access":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		folderID := r.URL.Query().Get("folder")
		d := space.ResolveAccess(&sp, folderID, id.ID, id.Email, time.Now().UTC())
		writeSuccess(w, http.StatusOK, map[string]any{"access": d})

	case sub == "members":
		a.addMember(w, r, spaceID, decision)

	case strings.HasPrefix(sub, "members/"):
		email := strings.TrimSuffix(strings.TrimPrefix(sub, "members/"), "/role")
		a.setMemberRole(w, r, spaceID, email, decision)

	case sub == "folders":
		a.createFolder(w, r, spaceID, decision)

	case strings.HasPrefix(sub, "folders/") && strings.HasSuffix(sub, "/permissions"):
		folderID := strings.TrimSuffix(strings.TrimPrefix(sub, "folders/"), "/permissions")
		a.grantFolderPermission(w, r, spaceID, folderID, decision)

	case sub == "nda":
		a.setNDASettings(w, r, spaceID, decision)

	case sub == "invitations":
		a.createInvitation(w, r, spaceID, id.Email, decision)

	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) addMember(w http.ResponseWriter, r *http.Request, spaceID string, d space.Decision) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !d.Capabilities.CanManageMembers {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sp, err := a.spaces.AddMember(r.Context(), spaceID, space.Member{
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		handleSpaceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "space.member_added", map[string]any{
		"space_id": spaceID,
		"email":    strings.ToLower(strings.TrimSpace(req.Email)),
	})
	writeSuccess(w, http.StatusCreated, map[string]any{"space": sp})
}

func (a *API) setMemberRole(w http.ResponseWriter, r *http.Request, spaceID, email string, d space.Decision) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	if !d.Capabilities.CanManageMembers {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sp, err := a.spaces.SetMemberRole(r.Context(), spaceID, email, req.Role)
	if err != nil {
		handleSpaceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"space": sp})
}

func (a *API) createFolder(w http.ResponseWriter, r *http.Request, spaceID string, d space.Decision) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !d.Capabilities.CanUpload {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	f, err := a.spaces.CreateFolder(r.Context(), spaceID, req.Name)
	if err != nil {
		handleSpaceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{"folder": f})
}

func (a *API) grantFolderPermission(w http.ResponseWriter, r *http.Request, spaceID, folderID string, d space.Decision) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !d.Capabilities.CanManageMembers {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req struct {
		Email       string     `json:"email"`
		CanView     bool       `json:"canView"`
		CanDownload bool       `json:"canDownload"`
		CanUpload   bool       `json:"canUpload"`
		ExpiresAt   *time.Time `json:"expiresAt"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	grant := space.FolderPermission{
		SpaceID:     spaceID,
		FolderID:    folderID,
		Email:       req.Email,
		CanView:     req.CanView,
		CanDownload: req.CanDownload,
		CanUpload:   req.CanUpload,
	}
	if req.ExpiresAt != nil {
		grant.ExpiresAt = *req.ExpiresAt
	}
	created, err := a.spaces.GrantFolderPermission(r.Context(), grant)
	if err != nil {
		handleSpaceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "space.folder_permission_granted", map[string]any{
		"space_id":  spaceID,
		"folder_id": folderID,
		"email":     created.Email,
	})
	writeSuccess(w, http.StatusCreated, map[string]any{"permission": created})
}

func (a *API) setNDASettings(w http.ResponseWriter, r *http.Request, spaceID string, d space.Decision) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !d.Capabilities.CanManageMembers {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req space.NDASettings
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sp, err := a.spaces.SetNDASettings(r.Context(), spaceID, req)
	if err != nil {
		handleSpaceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"ndaSettings": sp.NDASettings})
}

func (a *API) createInvitation(w http.ResponseWriter, r *http.Request, spaceID, inviterEmail string, d space.Decision) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !d.Capabilities.CanManageMembers {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req struct {
		Email     string     `json:"email"`
		Role      string     `json:"role"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inv := space.Invitation{
		SpaceID:   spaceID,
		Email:     req.Email,
		Role:      req.Role,
		InvitedBy: inviterEmail,
	}
	if req.ExpiresAt != nil {
		inv.ExpiresAt = *req.ExpiresAt
	}
	created, err := a.spaces.CreateInvitation(r.Context(), inv)
	if err != nil {
		handleSpaceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "space.invitation_created", map[string]any{
		"space_id": spaceID,
		"email":    created.Email,
	})
	writeSuccess(w, http.StatusCreated, map[string]any{"invitation": created})
}
