package httpapi

import (
	"net/http"
	"strings"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/auth"
)

const sessionCookie = "signroom_session"

// publicPaths never require a session. Recipient-facing routes carry their
// own capability tokens in the URL, so they live in publicPrefixes instead.
var publicPaths = map[string]struct{}{
	"/":                       {},
	"/healthz":                {},
	"/readyz":                 {},
	"/metrics":                {},
	"/v1/info":                {},
	"/v1/auth/register":       {},
	"/v1/auth/token":          {},
	"/v1/auth/password-reset": {},
}

var publicPrefixes = []string{
	"/v1/sign/",
	"/v1/envelopes/",
	"/v1/invitations/",
	"/v1/nda/certificates/",
}

// withAuth resolves the bearer token (or session cookie) to an identity.
// Public routes still get soft authentication: if a valid token is present
// the identity is attached, otherwise the request proceeds anonymously.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)

		if isPublic(r.URL.Path) {
			if token != "" {
				if id, err := a.auth.Authenticate(r.Context(), token); err == nil {
					ctx := auth.ContextWithIdentity(r.Context(), id)
					ctx = auth.ContextWithToken(ctx, token)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
			return
		}

		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		id, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := auth.ContextWithIdentity(r.Context(), id)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isPublic(path string) bool {
	if _, ok := publicPaths[path]; ok {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	// NDA status/accept are reachable both by members and invited guests.
	if strings.HasPrefix(path, "/v1/spaces/") && strings.Contains(path, "/nda/") {
		return true
	}
	return false
}

// bearerToken reads Authorization: Bearer first, then the session cookie.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}
