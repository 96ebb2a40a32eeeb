package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/audit"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/docs"
)

// handleDocumentsCollection serves /v1/documents: list (GET) and create (POST).
func (a *API) handleDocumentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listDocuments(w, r)
	case http.MethodPost:
		a.createDocument(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	archived := r.URL.Query().Get("archived") == "true"
	list, err := a.docs.ListDocuments(r.Context(), id.ID, archived)
	if err != nil {
		handleDocsError(w, r, err)
		return
	}
	if list == nil {
		list = []docs.Document{}
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"documents": list,
		"count":     len(list),
	})
}

func (a *API) createDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req struct {
		Title     string     `json:"title"`
		FileURL   string     `json:"fileUrl"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	doc := docs.Document{
		UserID:  id.ID,
		Title:   req.Title,
		FileURL: req.FileURL,
	}
	if req.ExpiresAt != nil {
		doc.ExpiresAt = *req.ExpiresAt
	}
	created, err := a.docs.CreateDocument(r.Context(), doc)
	if err != nil {
		handleDocsError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "document.created", map[string]any{
		"document_id": created.ID,
	})
	writeSuccess(w, http.StatusCreated, map[string]any{"document": created})
}

// handleDocumentResource serves /v1/documents/{id} and its sub-resources:
//
//	GET    /v1/documents/{id}          (also /details)
//	GET    /v1/documents/{id}/expiry
//	PATCH  /v1/documents/{id}/archive
//	PATCH  /v1/documents/{id}/restore
func (a *API) handleDocumentResource(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	docID, action, _ := strings.Cut(rest, "/")
	if docID == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch action {
	case "", "details":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		doc, err := a.docs.GetDocument(r.Context(), docID, id.ID)
		if err != nil {
			handleDocsError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"document": doc})

	case "expiry":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		doc, err := a.docs.GetDocument(r.Context(), docID, id.ID)
		if err != nil {
			handleDocsError(w, r, err)
			return
		}
		status := docs.CheckExpiry(doc.ExpiresAt, time.Now().UTC())
		writeSuccess(w, http.StatusOK, map[string]any{"expiry": status})

	case "archive":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		doc, err := a.docs.ArchiveDocument(r.Context(), docID, id.ID)
		if err != nil {
			handleDocsError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "document.archived", map[string]any{
			"document_id": doc.ID,
		})
		writeSuccess(w, http.StatusOK, map[string]any{"document": doc})

	case "restore":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		doc, err := a.docs.RestoreDocument(r.Context(), docID, id.ID)
		if err != nil {
			handleDocsError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "document.restored", map[string]any{
			"document_id": doc.ID,
		})
		writeSuccess(w, http.StatusOK, map[string]any{"document": doc})

	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}
