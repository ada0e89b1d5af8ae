package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// CookieStore persists session cookies per host between process runs.
type CookieStore interface {
	LoadCookies(host string) ([]*http.Cookie, error)
	SaveCookie(host string, c *http.Cookie) error
	DeleteCookie(host, name string) error
}

// Jar is an http.CookieJar that mirrors every cookie it accepts into a
// CookieStore, so a later process can resume the same server session.
type Jar struct {
	inner *cookiejar.Jar
	store CookieStore
}

// NewJar returns a Jar seeded with the cookies stored for baseURL's host.
func NewJar(store CookieStore, baseURL string) (*Jar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("api.NewJar: %w", err)
	}
	j := &Jar{inner: inner, store: store}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api.NewJar parse base url: %w", err)
	}
	saved, err := store.LoadCookies(u.Hostname())
	if err != nil {
		return nil, fmt.Errorf("api.NewJar load: %w", err)
	}

	now := time.Now()
	live := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			if err := store.DeleteCookie(u.Hostname(), c.Name); err != nil {
				slog.Warn("api: failed to prune expired cookie", "name", c.Name, "err", err)
			}
			continue
		}
		live = append(live, c)
	}
	if len(live) > 0 {
		// Path "/" so the cookies apply to every endpoint on the host.
		inner.SetCookies(&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, live)
	}
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	now := time.Now()
	for _, c := range cookies {
		var err error
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			err = j.store.DeleteCookie(u.Hostname(), c.Name)
		} else {
			stored := *c
			if c.MaxAge > 0 {
				stored.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
			}
			err = j.store.SaveCookie(u.Hostname(), &stored)
		}
		if err != nil {
			slog.Warn("api: failed to persist cookie", "name", c.Name, "err", err)
		}
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}
