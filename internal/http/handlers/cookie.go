package handlers

import (
	"net/http"

	"github.com/codeandrun/server/internal/auth"
	"github.com/codeandrun/server/internal/middleware"
)

// CookieWriter attaches and clears the session cookie. The cookie is HttpOnly
// and SameSite=None so the cross-origin frontend can send it; browsers require
// Secure with SameSite=None, so insecure is only for local plain-HTTP dev.
type CookieWriter struct {
	secure bool
}

// NewCookieWriter creates a cookie writer.
func NewCookieWriter(secure bool) *CookieWriter {
	return &CookieWriter{secure: secure}
}

// Set attaches the session token as a cookie valid for the token TTL.
func (c *CookieWriter) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteNoneMode,
	})
}

// Clear expires the session cookie.
func (c *CookieWriter) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteNoneMode,
	})
}
