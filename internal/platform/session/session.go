// Package session resolves the shopping session identity for a request.
//
// Storefront calls carry the session either as the gw_session cookie or,
// for server-to-server hook deliveries, as the X-Session-ID header. The
// middleware extracts whichever is present and stores it on the request
// context so handlers and services never touch the transport details.
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/eva-commerce/giftwrap/internal/platform/requestctx"
)

// HeaderSessionID is the header consulted when no session cookie exists.
const HeaderSessionID = "X-Session-ID"

// Config controls cookie naming and lifetime.
type Config struct {
	CookieName string
	TTL        time.Duration
	// Secure marks issued cookies as HTTPS-only. Off by default so the
	// service works behind emulators and local storefront previews.
	Secure bool
}

func (c Config) cookieName() string {
	if strings.TrimSpace(c.CookieName) == "" {
		return "gw_session"
	}
	return c.CookieName
}

// Middleware places the caller's session identifier, when present, on the
// request context. It never mints a session itself; services do that when
// a write actually needs one.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	name := cfg.cookieName()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := FromRequest(r, name); id != "" {
				r = r.WithContext(requestctx.WithSessionID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FromRequest extracts the session identifier from the cookie named
// cookieName, falling back to the X-Session-ID header.
func FromRequest(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil {
		if id := strings.TrimSpace(cookie.Value); id != "" {
			return id
		}
	}
	return strings.TrimSpace(r.Header.Get(HeaderSessionID))
}

// Issue writes the session cookie so later storefront requests carry the
// same identity the service just minted.
func Issue(w http.ResponseWriter, cfg Config, sessionID string, now time.Time) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.cookieName(),
		Value:    sessionID,
		Path:     "/",
		Expires:  now.Add(ttl),
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
