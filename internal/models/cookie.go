package models

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Cookie is a single session cookie captured from the browser after login.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Expired reports whether the cookie carries an expiry in the past. A zero
// expiry means a session cookie, which never counts as expired here.
func (c Cookie) Expired(now time.Time) bool {
	if c.Expires <= 0 {
		return false
	}
	return time.Unix(int64(c.Expires), 0).Before(now)
}

// HTTPCookie converts to the net/http representation.
func (c Cookie) HTTPCookie() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
	}
	if c.Expires > 0 {
		hc.Expires = time.Unix(int64(c.Expires), 0)
	}
	return hc
}

// CookieJar is the full set of session cookies from a successful login,
// unique by (name, domain, path).
type CookieJar []Cookie

// Add inserts a cookie, replacing any existing cookie with the same
// (name, domain, path) identity.
func (j CookieJar) Add(c Cookie) CookieJar {
	for i, existing := range j {
		if existing.Name == c.Name && existing.Domain == c.Domain && existing.Path == c.Path {
			j[i] = c
			return j
		}
	}
	return append(j, c)
}

// Find returns the first cookie with the given name, or nil.
func (j CookieJar) Find(name string) *Cookie {
	for i := range j {
		if j[i].Name == name {
			return &j[i]
		}
	}
	return nil
}

// Header reconstructs a Cookie request header value from the jar. Cookies
// whose expiry has already passed are left out.
func (j CookieJar) Header() string {
	now := time.Now()
	parts := make([]string, 0, len(j))
	for _, c := range j {
		if c.Expired(now) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", c.Name, c.Value))
	}
	return strings.Join(parts, "; ")
}

// Validate checks that every cookie has a non-empty name and domain and that
// the jar is unique by (name, domain, path).
func (j CookieJar) Validate() error {
	seen := make(map[string]struct{}, len(j))
	for _, c := range j {
		if c.Name == "" {
			return fmt.Errorf("cookie with empty name")
		}
		if c.Domain == "" {
			return fmt.Errorf("cookie %q has empty domain", c.Name)
		}
		key := c.Name + "\x00" + c.Domain + "\x00" + c.Path
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate cookie %q for domain %q path %q", c.Name, c.Domain, c.Path)
		}
		seen[key] = struct{}{}
	}
	return nil
}
