// Package session keeps the client logged in: a cookie jar mirrored into
// local storage, and the login state built on top of it.
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"financeflow/internal/log"
	"financeflow/internal/storage"
)

const persistTimeout = 2 * time.Second

// CookieStore persists cookies between runs.
type CookieStore interface {
	SaveCookie(ctx context.Context, c storage.Cookie) error
	DeleteCookie(ctx context.Context, url, name string) error
	LoadCookies(ctx context.Context, now time.Time) ([]storage.Cookie, error)
	ClearCookies(ctx context.Context) error
}

// Jar is an http.CookieJar whose contents survive restarts.
type Jar struct {
	store  CookieStore
	logger *log.Logger
	now    func() time.Time

	mu    sync.RWMutex
	inner *cookiejar.Jar
}

// NewJar creates a jar and loads the persisted cookies into it.
func NewJar(ctx context.Context, store CookieStore, logger *log.Logger) (*Jar, error) {
	if logger == nil {
		logger = log.Default(log.ComponentSession)
	}
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	j := &Jar{store: store, logger: logger, now: time.Now, inner: inner}

	saved, err := store.LoadCookies(ctx, j.now())
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	for _, c := range saved {
		u, err := url.Parse(c.URL)
		if err != nil {
			logger.Warn("Skipping cookie with bad origin", "url", c.URL, log.FieldError, err)
			continue
		}
		inner.SetCookies(u, []*http.Cookie{{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}})
	}
	logger.Debug("Cookie jar restored", log.FieldCount, len(saved))
	return j, nil
}

// SetCookies implements http.CookieJar and mirrors the change into the store.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	j.inner.SetCookies(u, cookies)
	j.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	origin := originOf(u)
	now := j.now()
	for _, c := range cookies {
		if expired(c, now) {
			if err := j.store.DeleteCookie(ctx, origin, c.Name); err != nil {
				j.logger.Warn("Failed to forget cookie", "name", c.Name, log.FieldError, err)
			}
			continue
		}
		rec := storage.Cookie{
			URL:      origin,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if c.MaxAge > 0 {
			rec.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if err := j.store.SaveCookie(ctx, rec); err != nil {
			j.logger.Warn("Failed to persist cookie", "name", c.Name, log.FieldError, err)
		}
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.inner.Cookies(u)
}

// Reset forgets every cookie, in memory and on disk.
func (j *Jar) Reset(ctx context.Context) error {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}
	j.mu.Lock()
	j.inner = inner
	j.mu.Unlock()
	return j.store.ClearCookies(ctx)
}

func expired(c *http.Cookie, now time.Time) bool {
	if c.MaxAge < 0 {
		return true
	}
	return c.MaxAge == 0 && !c.Expires.IsZero() && !c.Expires.After(now)
}

func originOf(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
