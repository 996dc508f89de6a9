// Package httpx wraps net/http with the small amount of shared behavior
// every upstream call in this project needs: a default User-Agent, per-call
// contexts, JSON decoding, and single-hop redirect resolution.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mediagrab/internal/domain"
)

// Client is a reusable HTTP session. It is safe for concurrent use.
type Client struct {
	impl      *http.Client
	noFollow  *http.Client
	userAgent string
}

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string

	// Transport overrides the default transport. Tests inject fakes
	// through it.
	Transport http.RoundTripper
}

// New creates a Client with the given options.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			ResponseHeaderTimeout: opts.Timeout,
		}
	}
	return &Client{
		impl: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		noFollow: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: opts.UserAgent,
	}
}

// Do performs the request, setting the default User-Agent unless the
// caller already set one.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.impl.Do(req)
}

// Get issues a GET with optional extra headers and returns the response.
// The caller is responsible for closing the body.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.Do(req)
}

// GetBody issues a GET and returns the full response body, enforcing a
// 200 status.
func (c *Client) GetBody(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	resp, err := c.Get(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidStatus, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// GetJSON issues a GET with an Accept: application/json header and
// decodes the body into dst.
func (c *Client) GetJSON(ctx context.Context, url string, dst any) error {
	resp, err := c.Get(ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", domain.ErrInvalidStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ResolveRedirect issues a single request without following redirects and
// returns the Location target resolved against the request URL, or the
// original URL when the server does not redirect. Mirrors routinely send
// relative Location headers.
func (c *Client) ResolveRedirect(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.noFollow.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if loc, err := resp.Location(); err == nil {
			return loc.String(), nil
		}
	}
	return url, nil
}
