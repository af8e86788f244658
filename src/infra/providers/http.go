package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrTemporaryFailure indicates a 5xx or transport failure that may succeed on retry
	ErrTemporaryFailure = errors.New("temporary failure")

	// ErrRateLimited indicates the provider answered 429
	ErrRateLimited = errors.New("rate limited")
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReceiveTimeout = 10 * time.Second
	DefaultMaxRetries     = 1
	DefaultRetryDelay     = 2 * time.Second
	DefaultUserAgent      = "Soullyrics/1.0 (https://github.com/contre95/soullyrics)"
)

// HTTPSettings is the transport policy shared by every adapter.
type HTTPSettings struct {
	ConnectTimeout time.Duration
	ReceiveTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	UserAgent      string
}

// DefaultHTTPSettings returns the settings used when nothing is configured.
func DefaultHTTPSettings() HTTPSettings {
	return HTTPSettings{
		ConnectTimeout: DefaultConnectTimeout,
		ReceiveTimeout: DefaultReceiveTimeout,
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
		UserAgent:      DefaultUserAgent,
	}
}

// client is the JSON GET plumbing embedded by the adapters.
type client struct {
	name       string
	baseURL    string
	userAgent  string
	httpClient *http.Client
	callTTL    time.Duration
	maxRetries int
	retryDelay time.Duration
}

// Option is a functional option shared by all adapters.
type Option func(*client)

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRetry overrides the retry policy.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithSettings applies a whole HTTPSettings block, usually coming from config.
func WithSettings(s HTTPSettings) Option {
	return func(c *client) {
		c.httpClient = newHTTPClient(s)
		c.callTTL = s.ConnectTimeout + s.ReceiveTimeout
		c.maxRetries = s.MaxRetries
		c.retryDelay = s.RetryDelay
		if s.UserAgent != "" {
			c.userAgent = s.UserAgent
		}
	}
}

func newClient(name, defaultBaseURL string, opts ...Option) *client {
	defaults := DefaultHTTPSettings()
	c := &client{
		name:       name,
		baseURL:    defaultBaseURL,
		userAgent:  defaults.UserAgent,
		httpClient: newHTTPClient(defaults),
		callTTL:    defaults.ConnectTimeout + defaults.ReceiveTimeout,
		maxRetries: defaults.MaxRetries,
		retryDelay: defaults.RetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newHTTPClient bounds connection setup with the dialer and the wait for the
// response headers with the transport. The body read is bounded by the per-call
// context in getJSON.
func newHTTPClient(s HTTPSettings) *http.Client {
	dialer := &net.Dialer{Timeout: s.ConnectTimeout}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   s.ConnectTimeout,
			ResponseHeaderTimeout: s.ReceiveTimeout,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// getJSON issues a GET against baseURL+path and decodes the body into out.
// found is false when the provider has no result (404, 400, 204 or empty body).
// Transient failures are retried up to maxRetries times, everything else is returned at once.
func (c *client) getJSON(ctx context.Context, path string, query url.Values, out any) (found bool, err error) {
	for attempt := 0; ; attempt++ {
		found, err = c.doGet(ctx, path, query, out)
		if err == nil || !isTransient(err) || attempt >= c.maxRetries || ctx.Err() != nil {
			return found, err
		}
		slog.Debug("Retrying provider request", "provider", c.name, "path", path, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return false, err
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *client) doGet(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	if c.callTTL > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTTL)
		defer cancel()
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s request: %w", c.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusNoContent:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Warn("Provider rate limit exceeded", "provider", c.name)
		return false, ErrRateLimited
	case resp.StatusCode >= 500:
		return false, fmt.Errorf("%w: %s returned status %d", ErrTemporaryFailure, c.name, resp.StatusCode)
	default:
		return false, fmt.Errorf("%s returned unexpected status: %d", c.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("parse %s response: %w", c.name, err)
	}
	return true, nil
}

// isTransient reports whether a failure may go away on retry: 5xx, 429 and
// network-level errors such as timeouts or connection resets.
func isTransient(err error) bool {
	if errors.Is(err, ErrTemporaryFailure) || errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
