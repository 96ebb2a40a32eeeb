// Package clientinfo classifies viewer requests for activity tracking and
// NDA acceptance records. All functions are pure.
package clientinfo

import (
	"net"
	"net/http"
	"strings"
)

// Info is the classified client fingerprint attached to view events.
type Info struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Device  string `json:"device"`
	IP      string `json:"ip,omitempty"`
}

// FromRequest classifies the request's user agent and extracts the client IP.
func FromRequest(r *http.Request) Info {
	info := Classify(r.UserAgent())
	info.IP = ClientIP(r)
	return info
}

// Classify parses a user-agent string into browser, OS and device class.
func Classify(ua string) Info {
	lower := strings.ToLower(ua)
	return Info{
		Browser: browserOf(ua, lower),
		OS:      osOf(lower),
		Device:  deviceOf(lower),
	}
}

// Match order matters: Edge and Opera embed "Chrome", Chrome embeds "Safari".
func browserOf(ua, lower string) string {
	switch {
	case strings.Contains(ua, "Edg/"), strings.Contains(ua, "Edge/"):
		return "Edge"
	case strings.Contains(ua, "OPR/"), strings.Contains(lower, "opera"):
		return "Opera"
	case strings.Contains(lower, "firefox/"):
		return "Firefox"
	case strings.Contains(lower, "chrome/"), strings.Contains(lower, "crios/"):
		return "Chrome"
	case strings.Contains(lower, "safari/"):
		return "Safari"
	case strings.Contains(lower, "msie"), strings.Contains(lower, "trident/"):
		return "Internet Explorer"
	case lower == "":
		return "Unknown"
	default:
		return "Other"
	}
}

func osOf(lower string) string {
	switch {
	case strings.Contains(lower, "windows"):
		return "Windows"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ios"):
		return "iOS"
	case strings.Contains(lower, "mac os x"), strings.Contains(lower, "macintosh"):
		return "macOS"
	case strings.Contains(lower, "android"):
		return "Android"
	case strings.Contains(lower, "linux"):
		return "Linux"
	default:
		return "Unknown"
	}
}

func deviceOf(lower string) string {
	switch {
	case strings.Contains(lower, "bot"), strings.Contains(lower, "spider"), strings.Contains(lower, "crawl"):
		return "bot"
	case strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"):
		return "tablet"
	case strings.Contains(lower, "mobile"), strings.Contains(lower, "iphone"), strings.Contains(lower, "android"):
		return "mobile"
	default:
		return "desktop"
	}
}

// ClientIP returns the first X-Forwarded-For hop, falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
