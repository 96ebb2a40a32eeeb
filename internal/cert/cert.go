// Package cert renders NDA acceptance certificates as PDF. Rendering is a
// pure function of the stored acceptance record: timestamps and addresses
// come from the record, never from the clock, so regenerating a certificate
// yields the same visible content.
package cert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/space"
)

const maxSnapshotRunes = 2000

// Render produces the PDF byte stream for one acceptance record. It performs
// no storage access and no writes.
func Render(acceptance space.NDAAcceptance) ([]byte, error) {
	if acceptance.CertificateID == "" || acceptance.SignerEmail == "" {
		return nil, fmt.Errorf("cert: incomplete acceptance record")
	}

	desc, err := json.Marshal(pageDescription(acceptance))
	if err != nil {
		return nil, fmt.Errorf("cert: build page description: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	var buf bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(desc), &buf, conf); err != nil {
		return nil, fmt.Errorf("cert: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// pageDescription builds the declarative single-page layout consumed by the
// pdfcpu create API.
func pageDescription(acc space.NDAAcceptance) map[string]any {
	lines := []map[string]any{
		textLine("NDA Acceptance Certificate", 20, 540, "Helvetica-Bold"),
		textLine("Certificate "+acc.CertificateID, 10, 515, "Helvetica"),
		textLine("Document: "+orDash(acc.DocumentTitle), 12, 470, "Helvetica"),
		textLine("Accepted by: "+signerLabel(acc), 12, 445, "Helvetica"),
		textLine("Accepted at: "+acc.AcceptedAt.UTC().Format("2006-01-02 15:04:05 UTC"), 12, 420, "Helvetica"),
		textLine("IP address: "+orDash(acc.IPAddress), 12, 395, "Helvetica"),
		textLine(fmt.Sprintf("Agreement version: %d", acc.NDAVersion), 12, 370, "Helvetica"),
		textLine("Agreement text at time of acceptance:", 12, 330, "Helvetica-Bold"),
		{
			"value":    snapshot(acc.NDAText),
			"font":     map[string]any{"name": "Helvetica", "size": 9},
			"position": []int{72, 310},
			"width":    450,
		},
	}
	return map[string]any{
		"pages": map[string]any{
			"1": map[string]any{
				"content": map[string]any{
					"text": lines,
				},
			},
		},
	}
}

func textLine(value string, size, y int, font string) map[string]any {
	return map[string]any{
		"value":    value,
		"font":     map[string]any{"name": font, "size": size},
		"position": []int{72, y},
	}
}

func signerLabel(acc space.NDAAcceptance) string {
	if acc.SignerName != "" {
		return acc.SignerName + " <" + acc.SignerEmail + ">"
	}
	return acc.SignerEmail
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// snapshot bounds the embedded agreement text so a pathological NDA cannot
// blow up the page.
func snapshot(text string) string {
	runes := []rune(text)
	if len(runes) <= maxSnapshotRunes {
		return text
	}
	return string(runes[:maxSnapshotRunes]) + " […]"
}
