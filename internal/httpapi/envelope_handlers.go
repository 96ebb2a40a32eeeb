package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/audit"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/captoken"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/docs"
)

// handleEnvelopeResource serves both sides of envelope signing:
//
//	POST /v1/envelopes/            create (authenticated sender)
//	GET  /v1/envelopes/{uniqueId}  recipient view via capability token
func (a *API) handleEnvelopeResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/envelopes/")

	if rest == "" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.createEnvelope(w, r)
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	token, err := captoken.Parse(rest)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	env, rcp, err := a.docs.EnvelopeByToken(r.Context(), token.String())
	if err != nil {
		handleDocsError(w, r, err)
		return
	}
	// Expired envelopes stay resolvable in storage but are refused here.
	status := docs.CheckExpiry(env.ExpiryDate, time.Now().UTC())
	if status.Expired {
		writeError(w, r, http.StatusForbidden, "resource expired")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"envelope": map[string]any{
			"id":          env.ID,
			"title":       env.Title,
			"documentIds": env.DocumentIDs,
			"status":      env.Status,
			"expiryDate":  env.ExpiryDate,
		},
		"recipient":       rcp,
		"signatureFields": env.FieldsForRecipient(rcp.RecipientIndex),
		"expiry":          status,
	})
}

func (a *API) createEnvelope(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req struct {
		Title           string                   `json:"title"`
		DocumentIDs     []string                 `json:"documentIds"`
		Recipients      []docs.EnvelopeRecipient `json:"recipients"`
		SignatureFields []docs.SignatureField    `json:"signatureFields"`
		ExpiryDate      *time.Time               `json:"expiryDate"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	env := docs.Envelope{
		UserID:          id.ID,
		Title:           req.Title,
		DocumentIDs:     req.DocumentIDs,
		Recipients:      req.Recipients,
		SignatureFields: req.SignatureFields,
	}
	if req.ExpiryDate != nil {
		env.ExpiryDate = *req.ExpiryDate
	}
	created, err := a.docs.CreateEnvelope(r.Context(), env)
	if err != nil {
		handleDocsError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "envelope.created", map[string]any{
		"envelope_id": created.ID,
		"recipients":  len(created.Recipients),
	})
	writeSuccess(w, http.StatusCreated, map[string]any{"envelope": created})
}
