package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/auth"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/docs"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/space"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/stream"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	authSvc, err := auth.NewService(auth.NewInMemoryStore(), "test-secret")
	if err != nil {
		t.Fatal(err)
	}
	api := New(ReadyProbe{}, "test", authSvc, docs.NewInMemory(), space.NewInMemory(), stream.New())
	// Tests hammer the API from one address; keep the limiter out of the way.
	api.rateBurst, api.ratePerSec = 10_000, 10_000
	return api
}

// apiClient drives the fully wrapped handler the way a real client would.
type apiClient struct {
	t     *testing.T
	h     http.Handler
	token string
}

func newClient(t *testing.T) (*apiClient, *API) {
	api := newTestAPI(t)
	return &apiClient{t: t, h: api.Handler()}, api
}

func (c *apiClient) do(method, path string, body any, want int, headers ...string) map[string]any {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	c.h.ServeHTTP(rr, req)
	if rr.Code != want {
		c.t.Fatalf("%s %s: status %d, want %d (body %s)", method, path, rr.Code, want, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		c.t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	return out
}

func (c *apiClient) signup(email string) {
	c.t.Helper()
	c.do(http.MethodPost, "/v1/auth/register", map[string]any{
		"email": email, "password": "pass-12345", "name": "Test User",
	}, http.StatusCreated)
	resp := c.do(http.MethodPost, "/v1/auth/token", map[string]any{
		"email": email, "password": "pass-12345",
	}, http.StatusOK)
	token, _ := resp["token"].(string)
	if token == "" {
		c.t.Fatal("no token issued")
	}
	c.token = token
}

func str(m map[string]any, keys ...string) string {
	var cur any = m
	for _, k := range keys {
		mm, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = mm[k]
	}
	s, _ := cur.(string)
	return s
}

func TestHealthAndInfo(t *testing.T) {
	c, _ := newClient(t)
	resp := c.do(http.MethodGet, "/healthz", nil, http.StatusOK)
	if resp["status"] != "ok" {
		t.Fatalf("healthz: %+v", resp)
	}
	resp = c.do(http.MethodGet, "/v1/info", nil, http.StatusOK)
	if resp["name"] != "signroom-api" {
		t.Fatalf("info: %+v", resp)
	}
}

func TestAuthRequiredOnProtectedRoutes(t *testing.T) {
	c, _ := newClient(t)
	resp := c.do(http.MethodGet, "/v1/documents", nil, http.StatusUnauthorized)
	if resp["error"] == nil || resp["request_id"] == nil {
		t.Fatalf("error envelope incomplete: %+v", resp)
	}

	c.token = "bogus"
	c.do(http.MethodGet, "/v1/documents", nil, http.StatusUnauthorized)
}

func TestSessionCookieAuthenticates(t *testing.T) {
	c, _ := newClient(t)
	c.signup("cookie@example.com")
	token := c.token
	c.token = ""

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	rr := httptest.NewRecorder()
	c.h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("cookie auth failed: %d %s", rr.Code, rr.Body.String())
	}
}

func TestDocumentLifecycle(t *testing.T) {
	c, _ := newClient(t)
	c.signup("docs@example.com")

	created := c.do(http.MethodPost, "/v1/documents", map[string]any{
		"title":     "Contract",
		"expiresAt": time.Now().Add(3 * 24 * time.Hour).UTC().Format(time.RFC3339),
	}, http.StatusCreated)
	docID := str(created, "document", "id")
	if docID == "" {
		t.Fatalf("no document id: %+v", created)
	}

	list := c.do(http.MethodGet, "/v1/documents", nil, http.StatusOK)
	if n, _ := list["count"].(float64); n != 1 {
		t.Fatalf("count = %v", list["count"])
	}

	expiry := c.do(http.MethodGet, "/v1/documents/"+docID+"/expiry", nil, http.StatusOK)
	exp, _ := expiry["expiry"].(map[string]any)
	if exp["expiringSoon"] != true {
		t.Fatalf("expected expiringSoon: %+v", exp)
	}
	if days, _ := exp["daysUntilExpiry"].(float64); days != 3 {
		t.Fatalf("daysUntilExpiry = %v", exp["daysUntilExpiry"])
	}

	details := c.do(http.MethodGet, "/v1/documents/"+docID+"/details", nil, http.StatusOK)
	if str(details, "document", "title") != "Contract" {
		t.Fatalf("details wrong: %+v", details)
	}

	c.do(http.MethodPatch, "/v1/documents/"+docID+"/archive", nil, http.StatusOK)
	list = c.do(http.MethodGet, "/v1/documents", nil, http.StatusOK)
	if n, _ := list["count"].(float64); n != 0 {
		t.Fatalf("archived doc still listed: %+v", list)
	}
	archived := c.do(http.MethodGet, "/v1/documents?archived=true", nil, http.StatusOK)
	if n, _ := archived["count"].(float64); n != 1 {
		t.Fatalf("archived list wrong: %+v", archived)
	}

	restored := c.do(http.MethodPatch, "/v1/documents/"+docID+"/restore", nil, http.StatusOK)
	docBody, _ := restored["document"].(map[string]any)
	if docBody["archived"] != false {
		t.Fatalf("restore failed: %+v", docBody)
	}
	// Restoring again is a quiet no-op.
	c.do(http.MethodPatch, "/v1/documents/"+docID+"/restore", nil, http.StatusOK)
}

func TestForeignDocumentLooksMissing(t *testing.T) {
	c, api := newClient(t)
	c.signup("alice@example.com")
	created := c.do(http.MethodPost, "/v1/documents", map[string]any{"title": "Private"}, http.StatusCreated)
	docID := str(created, "document", "id")

	other := &apiClient{t: t, h: api.Handler()}
	other.signup("mallory@example.com")
	other.do(http.MethodGet, "/v1/documents/"+docID, nil, http.StatusNotFound)
	other.do(http.MethodPatch, "/v1/documents/"+docID+"/archive", nil, http.StatusNotFound)
}

func TestBulkSendAndSigningFlow(t *testing.T) {
	c, _ := newClient(t)
	c.signup("sender@example.com")

	var ids []string
	for _, title := range []string{"NDA", "MSA"} {
		resp := c.do(http.MethodPost, "/v1/documents", map[string]any{"title": title}, http.StatusCreated)
		ids = append(ids, str(resp, "document", "id"))
	}

	payload := map[string]any{
		"documentIds": ids,
		"recipient":   map[string]string{"email": "signer@example.com", "name": "Signer"},
		"message":     "please sign both",
	}
	created := c.do(http.MethodPost, "/v1/bulk-send/multi-docs", payload, http.StatusCreated,
		"Idempotency-Key", "bulk-1")
	reqs, _ := created["signatureRequests"].([]any)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 signature requests: %+v", created)
	}
	batchID := str(created, "bulkSend", "batchId")

	// Retry with the same key replays the original batch.
	replay := c.do(http.MethodPost, "/v1/bulk-send/multi-docs", payload, http.StatusCreated,
		"Idempotency-Key", "bulk-1")
	if str(replay, "bulkSend", "batchId") != batchID {
		t.Fatalf("idempotent retry made a new batch")
	}

	// Recipient signs both documents without any session.
	guest := &apiClient{t: t, h: c.h}
	for _, raw := range reqs {
		req, _ := raw.(map[string]any)
		token, _ := req["uniqueId"].(string)
		guest.do(http.MethodGet, "/v1/sign/"+token, nil, http.StatusOK)
		guest.do(http.MethodPost, "/v1/sign/"+token+"/viewed", nil, http.StatusOK)
		signed := guest.do(http.MethodPost, "/v1/sign/"+token+"/signed", nil, http.StatusOK)
		if str(signed, "signatureRequest", "status") != "signed" {
			t.Fatalf("sign failed: %+v", signed)
		}
	}

	// The stored counters do not move until an explicit recompute.
	status := c.do(http.MethodGet, "/v1/bulk-send/"+batchID+"/status", nil, http.StatusOK)
	bs, _ := status["bulkSend"].(map[string]any)
	if p, _ := bs["pendingCount"].(float64); p != 2 {
		t.Fatalf("status read must be verbatim, pending=%v", bs["pendingCount"])
	}

	fresh := c.do(http.MethodPost, "/v1/bulk-send/"+batchID+"/recompute", nil, http.StatusOK)
	bs, _ = fresh["bulkSend"].(map[string]any)
	if p, _ := bs["pendingCount"].(float64); p != 0 {
		t.Fatalf("recompute wrong: %+v", bs)
	}
	if bs["status"] != "completed" {
		t.Fatalf("batch should complete: %+v", bs)
	}
}

func TestSignRouteRejectsMalformedToken(t *testing.T) {
	c, _ := newClient(t)
	c.do(http.MethodGet, "/v1/sign/not-a-token", nil, http.StatusNotFound)
	c.do(http.MethodGet, "/v1/sign/123e4567-e89b-12d3-a456-426614174000", nil, http.StatusNotFound)
}

func TestEnvelopeRecipientView(t *testing.T) {
	c, _ := newClient(t)
	c.signup("sender@example.com")

	created := c.do(http.MethodPost, "/v1/envelopes/", map[string]any{
		"title":       "Closing set",
		"documentIds": []string{"doc1"},
		"recipients": []map[string]any{
			{"email": "a@example.com", "name": "A"},
			{"email": "b@example.com", "name": "B"},
		},
		"signatureFields": []map[string]any{
			{"recipientIndex": 0, "documentId": "doc1", "page": 1, "kind": "signature"},
			{"recipientIndex": 1, "documentId": "doc1", "page": 1, "kind": "signature"},
			{"recipientIndex": 1, "documentId": "doc1", "page": 2, "kind": "date"},
		},
	}, http.StatusCreated)

	recipients, _ := created["envelope"].(map[string]any)["recipients"].([]any)
	second, _ := recipients[1].(map[string]any)
	token, _ := second["uniqueId"].(string)

	guest := &apiClient{t: t, h: c.h}
	view := guest.do(http.MethodGet, "/v1/envelopes/"+token, nil, http.StatusOK)
	fields, _ := view["signatureFields"].([]any)
	if len(fields) != 2 {
		t.Fatalf("recipient 1 should see exactly its 2 fields: %+v", view)
	}
	for _, f := range fields {
		if idx, _ := f.(map[string]any)["recipientIndex"].(float64); idx != 1 {
			t.Fatalf("leaked another recipient's field: %+v", f)
		}
	}
}

func TestExpiredEnvelopeRefused(t *testing.T) {
	c, _ := newClient(t)
	c.signup("sender@example.com")

	created := c.do(http.MethodPost, "/v1/envelopes/", map[string]any{
		"title":       "Stale",
		"documentIds": []string{"doc1"},
		"recipients":  []map[string]any{{"email": "a@example.com", "name": "A"}},
		"expiryDate":  time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	}, http.StatusCreated)
	recipients, _ := created["envelope"].(map[string]any)["recipients"].([]any)
	token, _ := recipients[0].(map[string]any)["uniqueId"].(string)

	guest := &apiClient{t: t, h: c.h}
	guest.do(http.MethodGet, "/v1/envelopes/"+token, nil, http.StatusForbidden)
}

func TestSpaceRolesAndFolderGrants(t *testing.T) {
	c, _ := newClient(t)
	c.signup("owner@example.com")

	created := c.do(http.MethodPost, "/v1/spaces", map[string]any{"name": "Deal Room"}, http.StatusCreated)
	spaceID := str(created, "space", "id")

	c.do(http.MethodPost, "/v1/spaces/"+spaceID+"/members", map[string]any{
		"email": "editor@example.com", "role": "editor",
	}, http.StatusCreated)

	role := c.do(http.MethodGet, "/v1/spaces/"+spaceID+"/my-role", nil, http.StatusOK)
	if role["role"] != "owner" {
		t.Fatalf("owner my-role: %+v", role)
	}

	folder := c.do(http.MethodPost, "/v1/spaces/"+spaceID+"/folders", map[string]any{"name": "Financials"}, http.StatusCreated)
	folderID := str(folder, "folder", "id")

	c.do(http.MethodPost, "/v1/spaces/"+spaceID+"/folders/"+folderID+"/permissions", map[string]any{
		"email":     "editor@example.com",
		"canView":   true,
		"expiresAt": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	}, http.StatusCreated)

	// The editor's own view of the folder: the expired grant denies outright.
	editor := &apiClient{t: t, h: c.h}
	editor.signup("editor@example.com")
	access := editor.do(http.MethodGet, "/v1/spaces/"+spaceID+"/access?folder="+folderID, nil, http.StatusOK)
	d, _ := access["access"].(map[string]any)
	if d["hasAccess"] != false || d["reason"] != "Access expired" {
		t.Fatalf("expired grant must deny: %+v", d)
	}

	// Editors cannot manage membership.
	editor.do(http.MethodPost, "/v1/spaces/"+spaceID+"/members", map[string]any{
		"email": "friend@example.com", "role": "viewer",
	}, http.StatusForbidden)

	// Promoting the editor to admin unlocks membership management.
	c.do(http.MethodPatch, "/v1/spaces/"+spaceID+"/members/editor@example.com/role", map[string]any{
		"role": "admin",
	}, http.StatusOK)
	promoted := editor.do(http.MethodGet, "/v1/spaces/"+spaceID+"/my-role", nil, http.StatusOK)
	if promoted["role"] != "admin" {
		t.Fatalf("promotion failed: %+v", promoted)
	}

	// Strangers cannot tell the space exists.
	stranger := &apiClient{t: t, h: c.h}
	stranger.signup("stranger@example.com")
	stranger.do(http.MethodGet, "/v1/spaces/"+spaceID, nil, http.StatusNotFound)
}

func TestNDAGateAndCertificate(t *testing.T) {
	c, _ := newClient(t)
	c.signup("owner@example.com")

	created := c.do(http.MethodPost, "/v1/spaces", map[string]any{"name": "Room"}, http.StatusCreated)
	spaceID := str(created, "space", "id")

	c.do(http.MethodPut, "/v1/spaces/"+spaceID+"/nda", map[string]any{
		"enabled": true, "title": "Mutual NDA", "text": "keep it secret",
	}, http.StatusOK)

	guest := &apiClient{t: t, h: c.h}
	status := guest.do(http.MethodGet, "/v1/spaces/"+spaceID+"/nda/status?email=guest@example.com", nil, http.StatusOK)
	if status["required"] != true {
		t.Fatalf("guest should be gated: %+v", status)
	}
	if str(status, "nda", "text") != "keep it secret" {
		t.Fatalf("gate should surface the terms: %+v", status)
	}

	// The owner bypasses their own gate.
	owner := c.do(http.MethodGet, "/v1/spaces/"+spaceID+"/nda/status", nil, http.StatusOK)
	if owner["required"] != false {
		t.Fatalf("owner gated by own NDA: %+v", owner)
	}

	accepted := guest.do(http.MethodPost, "/v1/spaces/"+spaceID+"/nda/accept", map[string]any{
		"email": "guest@example.com", "name": "Guest", "documentTitle": "Data Room",
	}, http.StatusCreated)
	certID, _ := accepted["certificateId"].(string)
	if certID == "" {
		t.Fatalf("no certificate id: %+v", accepted)
	}

	status = guest.do(http.MethodGet, "/v1/spaces/"+spaceID+"/nda/status?email=guest@example.com", nil, http.StatusOK)
	if status["required"] != false {
		t.Fatalf("acceptance should clear the gate: %+v", status)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/nda/certificates/"+certID, nil)
	rr := httptest.NewRecorder()
	c.h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("certificate fetch: %d %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), certID) {
		t.Fatalf("Content-Disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")) {
		t.Fatal("certificate body is not a PDF")
	}
}

func TestInvitationLookup(t *testing.T) {
	c, _ := newClient(t)
	c.signup("owner@example.com")
	created := c.do(http.MethodPost, "/v1/spaces", map[string]any{"name": "Room"}, http.StatusCreated)
	spaceID := str(created, "space", "id")

	inv := c.do(http.MethodPost, "/v1/spaces/"+spaceID+"/invitations", map[string]any{
		"email": "new@example.com", "role": "viewer",
	}, http.StatusCreated)
	token := str(inv, "invitation", "token")

	guest := &apiClient{t: t, h: c.h}
	got := guest.do(http.MethodGet, "/v1/invitations/"+token, nil, http.StatusOK)
	if str(got, "invitation", "spaceName") != "Room" {
		t.Fatalf("invitation lookup: %+v", got)
	}

	expired := c.do(http.MethodPost, "/v1/spaces/"+spaceID+"/invitations", map[string]any{
		"email":     "late@example.com",
		"role":      "viewer",
		"expiresAt": time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
	}, http.StatusCreated)
	guest.do(http.MethodGet, "/v1/invitations/"+str(expired, "invitation", "token"), nil, http.StatusForbidden)
}

func TestPasswordResetNotImplemented(t *testing.T) {
	c, _ := newClient(t)
	resp := c.do(http.MethodPost, "/v1/auth/password-reset", map[string]any{"email": "x@example.com"}, http.StatusServiceUnavailable)
	if resp["code"] != "not_implemented" {
		t.Fatalf("expected machine-readable code: %+v", resp)
	}
}

func TestUnknownRoute404(t *testing.T) {
	c, _ := newClient(t)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	c.h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}
