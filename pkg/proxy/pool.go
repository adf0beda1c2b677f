// Package proxy rotates outbound requests across a list of proxies and
// benches proxies that stop working, either everywhere (the proxy itself is
// down) or for one provider (that provider refuses traffic from it).
package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNilProxy is returned when a nil proxy URL is reported.
	ErrNilProxy = errors.New("proxy: proxyURL cannot be nil")
	// ErrUnknownProxy is returned when a reported proxy is not in the pool.
	ErrUnknownProxy = errors.New("proxy: proxy not found in pool")
)

type contextKey struct{}

// WithProxy returns a context that routes requests made with it through u.
func WithProxy(ctx context.Context, u *url.URL) context.Context {
	if u == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the proxy stored by WithProxy, if any.
func FromContext(ctx context.Context) (*url.URL, bool) {
	u, ok := ctx.Value(contextKey{}).(*url.URL)
	return u, ok && u != nil
}

// TransportProxy is an http.Transport Proxy func that honours WithProxy and
// otherwise falls back to the environment. Loopback targets bypass the
// environment so local test servers are reached directly.
func TransportProxy(req *http.Request) (*url.URL, error) {
	if u, ok := FromContext(req.Context()); ok {
		return u, nil
	}
	switch req.URL.Hostname() {
	case "127.0.0.1", "localhost", "::1":
		return nil, nil
	}
	return http.ProxyFromEnvironment(req)
}

// Result is the verdict on one request made through a proxy.
type Result int

const (
	// Success means the proxy delivered a response, whatever its status.
	Success Result = iota
	// Failed means the proxy could not be reached or dropped the request.
	Failed
	// Blocked means the provider answered but refused traffic from the proxy.
	Blocked
)

type entry struct {
	url          *url.URL
	failures     int
	successes    int
	benchedUntil time.Time
	// blocked holds per-scope bench expiry.
	blocked map[string]time.Time
}

func (e *entry) available(scope string, now time.Time) bool {
	if now.Before(e.benchedUntil) {
		return false
	}
	if until, ok := e.blocked[scope]; ok {
		if now.Before(until) {
			return false
		}
		delete(e.blocked, scope)
	}
	return true
}

// Pool hands out proxies round-robin. Safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	entries     []*entry
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// Config defines settings for the Proxy Pool.
type Config struct {
	// MaxFailures is the number of consecutive Failed reports that benches a
	// proxy for every scope.
	MaxFailures int
	// Cooldown is how long a benched or blocked proxy is skipped.
	Cooldown time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// NewPool creates an empty pool. Zero config values get defaults of three
// failures and a five minute cooldown.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         cfg.Now,
	}
}

// LoadFile reads proxies from a file, expecting one URL per line.
// Lines starting with '#' or empty lines are ignored.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var urls []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	return p.Add(urls...)
}

// Add parses proxy URLs and adds them to the pool. A missing scheme means
// http; duplicates are ignored. Nothing is added if any URL is invalid.
func (p *Pool) Add(rawURLs ...string) error {
	parsed := make([]*url.URL, 0, len(rawURLs))
	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return fmt.Errorf("proxy: unsupported scheme %q in %s", u.Scheme, u.Redacted())
		}
		if u.Host == "" {
			return fmt.Errorf("proxy: missing host in %q", raw)
		}
		parsed = append(parsed, u)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range parsed {
		if p.find(u) == nil {
			p.entries = append(p.entries, &entry{url: u})
		}
	}
	return nil
}

// Next returns the next proxy usable for scope, typically a provider id, or
// nil when the pool is empty or every proxy is benched for that scope.
func (p *Pool) Next(scope string) *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.entries {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)
		if e.available(scope, now) {
			return e.url
		}
	}
	return nil
}

// Report records the result of a request made through u for scope.
func (p *Pool) Report(u *url.URL, scope string, r Result) error {
	if u == nil {
		return ErrNilProxy
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.find(u)
	if e == nil {
		return ErrUnknownProxy
	}
	switch r {
	case Success:
		e.successes++
		e.failures = 0
	case Failed:
		e.failures++
		if e.failures >= p.maxFailures {
			e.benchedUntil = p.now().Add(p.cooldown)
			e.failures = 0
		}
	case Blocked:
		if e.blocked == nil {
			e.blocked = make(map[string]time.Time)
		}
		e.blocked[scope] = p.now().Add(p.cooldown)
	}
	return nil
}

// Len returns the number of proxies in the pool, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Available counts the proxies Next could return for scope right now.
func (p *Pool) Available(scope string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	n := 0
	for _, e := range p.entries {
		if e.available(scope, now) {
			n++
		}
	}
	return n
}

// find must be called with the lock held.
func (p *Pool) find(u *url.URL) *entry {
	target := u.String()
	for _, e := range p.entries {
		if e.url.String() == target {
			return e
		}
	}
	return nil
}
