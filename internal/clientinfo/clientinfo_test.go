package clientinfo

import (
	"net/http/httptest"
	"testing"
)

const (
	uaChromeWin  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaEdgeWin    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"
	uaSafariMac  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	uaIPhone     = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaFirefoxLnx = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaGooglebot  = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		ua      string
		browser string
		os      string
		device  string
	}{
		{uaChromeWin, "Chrome", "Windows", "desktop"},
		{uaEdgeWin, "Edge", "Windows", "desktop"},
		{uaSafariMac, "Safari", "macOS", "desktop"},
		{uaIPhone, "Safari", "iOS", "mobile"},
		{uaFirefoxLnx, "Firefox", "Linux", "desktop"},
		{uaGooglebot, "Other", "Unknown", "bot"},
		{"", "Unknown", "Unknown", "desktop"},
	}
	for _, tc := range cases {
		got := Classify(tc.ua)
		if got.Browser != tc.browser || got.OS != tc.os || got.Device != tc.device {
			t.Fatalf("Classify(%q) = %+v, want {%s %s %s}", tc.ua, got, tc.browser, tc.os, tc.device)
		}
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:4321"
	if got := ClientIP(r); got != "10.0.0.5" {
		t.Fatalf("ClientIP = %q, want 10.0.0.5", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Fatalf("ClientIP = %q, want first forwarded hop", got)
	}
}
