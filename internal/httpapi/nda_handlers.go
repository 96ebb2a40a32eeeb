package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/audit"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/auth"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/captoken"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/cert"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/clientinfo"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/obs"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/space"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/stream"
)

// ndaStatus serves GET /v1/spaces/{id}/nda/status. Sessions are optional:
// logged-in callers are identified from their token, invited guests pass
// ?email= instead.
func (a *API) ndaStatus(w http.ResponseWriter, r *http.Request, spaceID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	sp, err := a.spaces.GetSpace(r.Context(), spaceID)
	if err != nil {
		handleSpaceError(w, r, err)
		return
	}
	var userID, email string
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		userID, email = id.ID, id.Email
	} else {
		email = r.URL.Query().Get("email")
	}
	needed := space.NeedsNDA(&sp, userID, email)
	payload := map[string]any{
		"required": needed,
	}
	if needed {
		payload["nda"] = map[string]any{
			"title":   sp.NDASettings.Title,
			"text":    sp.NDASettings.Text,
			"version": sp.NDASettings.Version,
		}
	}
	writeSuccess(w, http.StatusOK, payload)
}

// ndaAccept serves POST /v1/spaces/{id}/nda/accept. The acceptance record
// captures the client fingerprint so the certificate can be rendered later.
func (a *API) ndaAccept(w http.ResponseWriter, r *http.Request, spaceID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		Email         string `json:"email"`
		Name          string `json:"name"`
		DocumentTitle string `json:"documentTitle"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if id, ok := auth.IdentityFromContext(r.Context()); ok && req.Email == "" {
		req.Email = id.Email
		if req.Name == "" {
			req.Name = id.Name
		}
	}
	info := clientinfo.FromRequest(r)
	acc, err := a.spaces.AcceptNDA(r.Context(), space.NDAAcceptance{
		SpaceID:       spaceID,
		DocumentTitle: req.DocumentTitle,
		SignerEmail:   req.Email,
		SignerName:    req.Name,
		IPAddress:     info.IP,
		UserAgent:     r.UserAgent(),
	})
	if err != nil {
		handleSpaceError(w, r, err)
		return
	}
	a.stream.Publish(stream.ActivityEvent{
		Kind:       stream.KindNDAAccepted,
		SpaceID:    spaceID,
		ActorEmail: acc.SignerEmail,
		Client:     info,
		Timestamp:  time.Now().UTC(),
	})
	_ = audit.LogEvent(r.Context(), "nda.accepted", map[string]any{
		"space_id":       spaceID,
		"certificate_id": acc.CertificateID,
		"signer":         acc.SignerEmail,
	})
	writeSuccess(w, http.StatusCreated, map[string]any{
		"certificateId": acc.CertificateID,
		"acceptedAt":    acc.AcceptedAt,
	})
}

// handleNDACertificate serves GET /v1/nda/certificates/{certificateId} as a
// PDF rendered on demand from the stored acceptance record.
func (a *API) handleNDACertificate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	certID := strings.TrimPrefix(r.URL.Path, "/v1/nda/certificates/")
	if certID == "" || strings.Contains(certID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	acc, err := a.spaces.GetNDAAcceptance(r.Context(), certID)
	if err != nil {
		handleSpaceError(w, r, err)
		return
	}
	pdf, err := cert.Render(acc)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "certificate rendering failed")
		return
	}
	obs.NDACertificateRendered()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="nda-certificate-`+certID+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// handleInvitation serves GET /v1/invitations/{token}.
func (a *API) handleInvitation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/v1/invitations/")
	token, err := captoken.Parse(raw)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	inv, err := a.spaces.GetInvitation(r.Context(), token.String())
	if err != nil {
		handleSpaceError(w, r, err)
		return
	}
	validity := captoken.Validity{ExpiresAt: inv.ExpiresAt}
	if err := validity.Check(time.Now().UTC()); err != nil {
		writeError(w, r, http.StatusForbidden, "invitation expired")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"invitation": inv})
}
