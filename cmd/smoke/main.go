// Command smoke drives one register → send → sign round trip against a
// running API and fails loudly if any step misbehaves.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("SIGNROOM_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 10 * time.Second}
	email := fmt.Sprintf("smoke-%d@example.com", rand.Int())

	// register + token
	post(client, base+"/v1/auth/register", "", map[string]any{
		"email": email, "password": "smoke-pass-1", "name": "Smoke Tester",
	}, http.StatusCreated)
	tokenResp := post(client, base+"/v1/auth/token", "", map[string]any{
		"email": email, "password": "smoke-pass-1",
	}, http.StatusOK)
	token, _ := tokenResp["token"].(string)
	if token == "" {
		log.Fatal("no token issued")
	}

	// two documents, one bulk send
	docA := createDoc(client, base, token, "Smoke NDA")
	docB := createDoc(client, base, token, "Smoke MSA")
	bulkResp := post(client, base+"/v1/bulk-send/multi-docs", token, map[string]any{
		"documentIds": []string{docA, docB},
		"recipient":   map[string]string{"email": "signer@example.com", "name": "Signer"},
		"message":     "please sign",
	}, http.StatusCreated)

	reqs, _ := bulkResp["signatureRequests"].([]any)
	if len(reqs) != 2 {
		log.Fatalf("expected 2 signature requests, got %d", len(reqs))
	}
	first, _ := reqs[0].(map[string]any)
	uniqueID, _ := first["uniqueId"].(string)
	if uniqueID == "" {
		log.Fatal("signature request missing uniqueId")
	}

	// recipient signs without a session
	post(client, base+"/v1/sign/"+uniqueID+"/viewed", "", nil, http.StatusOK)
	signed := post(client, base+"/v1/sign/"+uniqueID+"/signed", "", nil, http.StatusOK)
	sr, _ := signed["signatureRequest"].(map[string]any)
	if status, _ := sr["status"].(string); status != "signed" {
		log.Fatalf("unexpected status after signing: %q", status)
	}

	fmt.Println("✅ signroom smoke test passed")
}

func createDoc(client *http.Client, base, token, title string) string {
	resp := post(client, base+"/v1/documents", token, map[string]any{"title": title}, http.StatusCreated)
	doc, _ := resp["document"].(map[string]any)
	id, _ := doc["id"].(string)
	if id == "" {
		log.Fatalf("document %q not created", title)
	}
	return id
}

func post(client *http.Client, url, token string, body map[string]any, want int) map[string]any {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		log.Fatalf("POST %s: status %d, want %d", url, resp.StatusCode, want)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("decode %s: %v", url, err)
	}
	return out
}
