// Package api is the thin REST client for the finance backend. Every call is
// fire-once: no retries, no caching, no de-duplication.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"financeflow/internal/log"
)

const (
	DefaultBaseURL = "http://localhost:8000/api/v1/users"
	DefaultTimeout = 10 * time.Second
)

// Envelope is the normalized response wrapper every endpoint returns.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Message is the payload of endpoints that only acknowledge.
type Message struct {
	Message string `json:"message"`
}

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *log.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its Jar carries the session.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithCookieJar sets the jar that stores the session cookie.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) { c.http.Jar = jar }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentAPI)
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
		timeout: DefaultTimeout,
		logger:  log.Default(log.ComponentAPI),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Timeout == 0 {
		// Hard ceiling in case a caller passes a context without deadline
		// and the per-request timeout is bypassed.
		c.http.Timeout = 2 * c.timeout
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request performs one call and decodes the envelope. A non-2xx status fails
// with *HTTPError before the body is interpreted; a 2xx with success=false
// is returned as-is for the caller to inspect.
func Request[T any](ctx context.Context, c *Client, method, endpoint string, body any) (*Envelope[T], error) {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, endpoint, err)
		}
		payload = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, endpoint, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "API request failed",
			log.FieldMethod, method,
			log.FieldPath, endpoint,
			log.FieldRequestID, requestID,
			log.FieldError, err)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, endpoint, err)
	}
	defer resp.Body.Close()

	fields := log.NewFields().
		WithHTTPRequest(method, endpoint, "", requestID).
		WithHTTPResponse(resp.StatusCode, time.Since(start).Milliseconds(), resp.StatusCode < 300)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{Method: method, Path: endpoint, StatusCode: resp.StatusCode}
		var env Envelope[json.RawMessage]
		if raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && json.Unmarshal(raw, &env) == nil {
			httpErr.Message = env.Message
		}
		c.logger.WarnContext(ctx, "API request rejected", fields.ToSlice()...)
		return nil, httpErr
	}

	var env Envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.logger.WarnContext(ctx, "API response undecodable", fields.WithError(err).ToSlice()...)
		return nil, fmt.Errorf("%w: decode %s %s response: %w", ErrTransport, method, endpoint, err)
	}

	c.logger.DebugContext(ctx, "API request completed", fields.ToSlice()...)
	return &env, nil
}

// call unwraps the envelope, turning success=false into *DomainError.
func call[T any](ctx context.Context, c *Client, method, endpoint string, body any) (T, error) {
	var zero T
	env, err := Request[T](ctx, c, method, endpoint, body)
	if err != nil {
		return zero, err
	}
	if !env.Success {
		return zero, &DomainError{Message: env.Message}
	}
	return env.Data, nil
}
