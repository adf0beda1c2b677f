// Package httpclient is the HTTP client used for provider APIs: bounded
// timeouts, a redirect cap and a JSON GET that types its failures.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every request when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

const (
	// maxBody caps how much of a response body is read.
	maxBody = 16 << 20
	// maxErrorBody caps the body kept on a StatusError.
	maxErrorBody = 8 << 10
	// defaultRedirects applies when Config.MaxRedirects is zero.
	defaultRedirects = 10
)

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects caps followed redirects. Zero means 10, negative means
	// redirects are returned to the caller unfollowed.
	MaxRedirects int
	// Transport overrides the round tripper, e.g. for proxies or uTLS.
	Transport http.RoundTripper
	// UserAgent is sent on every request made through GetJSON.
	UserAgent string
}

// Client wraps http.Client with the configured policies.
type Client struct {
	*http.Client
	userAgent string
}

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Code   int
	Status string
	URL    string
	Header http.Header
	// Body holds the start of the response body.
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: %s returned %s", e.URL, e.Status)
}

// DecodeError reports a response body that is not the expected JSON.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("httpclient: decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("httpclient: negative timeout %s", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &http.Client{Timeout: cfg.Timeout}
	if cfg.MaxRedirects < 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else {
		limit := cfg.MaxRedirects
		if limit == 0 {
			limit = defaultRedirects
		}
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return fmt.Errorf("httpclient: stopped after %d redirects", limit)
			}
			return nil
		}
	}
	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c, userAgent: cfg.UserAgent}, nil
}

// Do executes req under ctx, which controls cancellation independently of
// the client timeout.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}
	resp, err := c.Client.Do(req.Clone(ctx))
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}

// GetJSON issues a GET to rawURL and decodes a 2xx JSON body into out.
// Non-2xx responses yield a *StatusError; undecodable bodies yield a
// *DecodeError. Transport failures are returned wrapped.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("httpclient: build request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return &StatusError{
			Code:   resp.StatusCode,
			Status: resp.Status,
			URL:    rawURL,
			Header: resp.Header,
			Body:   snippet,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{URL: rawURL, Err: err}
	}
	return nil
}
