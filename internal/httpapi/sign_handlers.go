package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/captoken"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/clientinfo"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/stream"
)

// handleSignResource serves recipient-facing signing routes. The capability
// token in the URL is the only credential; no session is required.
//
//	GET  /v1/sign/{uniqueId}
//	POST /v1/sign/{uniqueId}/viewed
//	POST /v1/sign/{uniqueId}/signed
func (a *API) handleSignResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sign/")
	raw, action, _ := strings.Cut(rest, "/")
	token, err := captoken.Parse(raw)
	if err != nil {
		// Malformed tokens are indistinguishable from unknown ones.
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		req, err := a.docs.SignatureRequestByToken(r.Context(), token.String())
		if err != nil {
			handleDocsError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"signatureRequest": req})

	case "viewed":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		req, err := a.docs.MarkViewed(r.Context(), token.String())
		if err != nil {
			handleDocsError(w, r, err)
			return
		}
		a.stream.Publish(stream.ActivityEvent{
			Kind:          stream.KindDocumentViewed,
			DocumentID:    req.DocumentID,
			DocumentTitle: req.DocumentTitle,
			ActorEmail:    req.RecipientEmail,
			Client:        clientinfo.FromRequest(r),
			Timestamp:     time.Now().UTC(),
		})
		writeSuccess(w, http.StatusOK, map[string]any{"signatureRequest": req})

	case "signed":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		req, err := a.docs.MarkSigned(r.Context(), token.String())
		if err != nil {
			handleDocsError(w, r, err)
			return
		}
		a.stream.Publish(stream.ActivityEvent{
			Kind:          stream.KindDocumentSigned,
			DocumentID:    req.DocumentID,
			DocumentTitle: req.DocumentTitle,
			ActorEmail:    req.RecipientEmail,
			Client:        clientinfo.FromRequest(r),
			Timestamp:     time.Now().UTC(),
		})
		writeSuccess(w, http.StatusOK, map[string]any{"signatureRequest": req})

	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}
