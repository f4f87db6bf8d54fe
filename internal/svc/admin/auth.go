// If you are AI: This file implements admin authentication and origin gating.
// Logins mint a salted session cookie; the API is confined to LAN-class remotes.

package admin

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"glint/internal/config"
	"glint/internal/crypto"
	"glint/internal/identity"
)

// SessionExpire is how long a login cookie stays valid.
const SessionExpire = 30 * 24 * time.Hour

// cookieState holds the single active admin session.
// Only the salted hash of the cookie is kept server side.
type cookieState struct {
	mu      sync.Mutex
	hashed  string
	created time.Time
}

// set mints a fresh session cookie and returns its raw value.
func (c *cookieState) set(salt string) string {
	raw := crypto.RandAlphabet(64, "")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashed = identity.HashPassword(raw, salt)
	c.created = time.Now()
	return raw
}

// check validates a presented cookie value.
func (c *cookieState) check(raw, salt string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hashed == "" {
		return false
	}
	if time.Since(c.created) > SessionExpire {
		c.hashed = ""
		return false
	}
	return identity.HashPassword(raw, salt) == c.hashed
}

// invalidate drops the active session, forcing a fresh login.
func (c *cookieState) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashed = ""
}

// originClass ranks a remote address: 0 loopback, 1 private LAN, 2 public.
func originClass(remote string) int {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return 2
	}
	if ip.IsLoopback() {
		return 0
	}
	if ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return 1
	}
	return 2
}

// allowedClass maps the configured origin policy to the maximum rank.
func allowedClass(policy string) int {
	switch policy {
	case config.OriginPCOnly:
		return 0
	case config.OriginLAN:
		return 1
	default:
		return 2
	}
}

// checkOrigin rejects requests from remotes outside the configured class.
func (s *Service) checkOrigin(w http.ResponseWriter, r *http.Request) bool {
	if originClass(r.RemoteAddr) > allowedClass(s.cfg.OriginAllowed) {
		s.logger.Info("admin request denied by origin policy")
		w.WriteHeader(http.StatusForbidden)
		return false
	}
	return true
}

// authenticate verifies the session cookie. Requests without a valid
// cookie get 401; hosts without configured credentials get a setup hint.
func (s *Service) authenticate(w http.ResponseWriter, r *http.Request) bool {
	if !s.checkOrigin(w, r) {
		return false
	}

	creds := s.credentials()
	if !creds.Configured() {
		s.writeError(w, http.StatusUnauthorized, "credentials not configured")
		return false
	}

	cookie, err := r.Cookie("auth")
	if err != nil || cookie.Value == "" {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	if !s.cookies.check(cookie.Value, creds.Salt) {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

// getCookieValue extracts one cookie from a raw Cookie header line. No
// handler calls it; the event feed authenticates through authenticate like
// the other endpoints.
func getCookieValue(header, key string) string {
	for _, part := range strings.Split(header, ";") {
		if k, v, ok := strings.Cut(strings.TrimSpace(part), "="); ok && k == key {
			return v
		}
	}
	return ""
}
