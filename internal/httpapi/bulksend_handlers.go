package httpapi

import (
	"net/http"
	"strings"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/audit"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/docs"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/obs"
)

// handleBulkSendCreate serves POST /v1/bulk-send/multi-docs: fan one
// recipient out across several documents as one batch. An Idempotency-Key
// header makes retries replay the original batch instead of duplicating it.
func (a *API) handleBulkSendCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req struct {
		DocumentIDs []string       `json:"documentIds"`
		Recipient   docs.Recipient `json:"recipient"`
		Message     string         `json:"message"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in := docs.BulkSendInput{
		SenderID:    id.ID,
		DocumentIDs: req.DocumentIDs,
		Recipient:   req.Recipient,
		Message:     req.Message,
	}
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	res, err := a.docs.CreateBulkSend(r.Context(), in, idemKey)
	if err != nil {
		handleDocsError(w, r, err)
		return
	}
	obs.SignatureRequestCreated(len(res.SignatureRequests))
	_ = audit.LogEvent(r.Context(), "bulksend.created", map[string]any{
		"batch_id":       res.BulkSend.BatchID,
		"document_count": res.BulkSend.DocumentCount,
		"recipient":      res.BulkSend.RecipientEmail,
	})
	writeSuccess(w, http.StatusCreated, map[string]any{
		"bulkSend":          res.BulkSend,
		"signatureRequests": res.SignatureRequests,
	})
}

// handleBulkSendResource serves /v1/bulk-send/{batchId} (also /status) and
// POST /v1/bulk-send/{batchId}/recompute.
func (a *API) handleBulkSendResource(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/bulk-send/")
	batchID, action, _ := strings.Cut(rest, "/")
	if batchID == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch action {
	case "", "status":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		// Counters come back as stored; clients wanting live numbers call
		// the recompute endpoint.
		b, err := a.docs.GetBulkSend(r.Context(), batchID, id.ID)
		if err != nil {
			handleDocsError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"bulkSend": b})

	case "recompute":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		b, err := a.docs.RecomputeBulkSend(r.Context(), batchID, id.ID)
		if err != nil {
			handleDocsError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "bulksend.recomputed", map[string]any{
			"batch_id": b.BatchID,
		})
		writeSuccess(w, http.StatusOK, map[string]any{"bulkSend": b})

	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}
