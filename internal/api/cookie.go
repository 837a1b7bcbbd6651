package api

import (
	"net/http"

	"github.com/gorilla/securecookie"
)

// CookieOptions configures the session cookie.
type CookieOptions struct {
	Name   string
	Secret string
	MaxAge int
	Secure bool
}

// SessionCookie carries the session id in a signed cookie. Tampered or
// foreign values fail to decode and are treated as absent.
type SessionCookie struct {
	name   string
	maxAge int
	secure bool
	codec  *securecookie.SecureCookie
}

// NewSessionCookie creates a cookie codec keyed by opts.Secret.
func NewSessionCookie(opts CookieOptions) *SessionCookie {
	codec := securecookie.New([]byte(opts.Secret), nil)
	codec.MaxAge(opts.MaxAge)
	return &SessionCookie{
		name:   opts.Name,
		maxAge: opts.MaxAge,
		secure: opts.Secure,
		codec:  codec,
	}
}

// Read returns the session id carried by r.
func (c *SessionCookie) Read(r *http.Request) (string, bool) {
	ck, err := r.Cookie(c.name)
	if err != nil {
		return "", false
	}
	var sid string
	if err := c.codec.Decode(c.name, ck.Value, &sid); err != nil || sid == "" {
		return "", false
	}
	return sid, true
}

// Write sets the cookie to carry sessionID.
func (c *SessionCookie) Write(w http.ResponseWriter, sessionID string) error {
	encoded, err := c.codec.Encode(c.name, sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    encoded,
		Path:     "/",
		MaxAge:   c.maxAge,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the cookie in the browser.
func (c *SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
