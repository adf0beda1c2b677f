package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/quarry/internal/bypass"
	"github.com/FranksOps/quarry/internal/cache"
	"github.com/FranksOps/quarry/internal/fingerprint"
	"github.com/FranksOps/quarry/internal/metrics"
	"github.com/FranksOps/quarry/internal/result"
	"github.com/FranksOps/quarry/pkg/httpclient"
	"github.com/FranksOps/quarry/pkg/proxy"
	"github.com/FranksOps/quarry/pkg/ratelimit"
)

// DefaultUserAgent identifies the client to provider APIs. Wikimedia asks
// API clients to send a descriptive agent.
const DefaultUserAgent = "quarry/1.0 (+https://github.com/FranksOps/quarry)"

// FetchConfig configures the HTTP path shared by every adapter.
type FetchConfig struct {
	Timeout     time.Duration
	Fingerprint fingerprint.Profile
	ProxyPool   *proxy.Pool
	// RequestsPerSecond limits calls per provider (0 = unlimited).
	RequestsPerSecond float64
	// Jitter applies randomness to the rate limiter (0.0 to 1.0)
	Jitter    float64
	UserAgent string
	Cache     *cache.Cache
	// CacheTTL overrides the cache's default lifetime for adapter payloads.
	CacheTTL time.Duration
	Logger   *slog.Logger
	// Transport replaces the fingerprinted transport, for tests.
	Transport http.RoundTripper
}

// Fetcher performs provider requests for the adapters: cache lookup, rate
// limiting, optional proxy rotation, JSON decoding and metrics.
type Fetcher struct {
	config   FetchConfig
	client   *httpclient.Client
	limiters *ratelimit.Set
	logger   *slog.Logger
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = httpclient.DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if string(cfg.Fingerprint) == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := cfg.Transport
	if transport == nil {
		// Proxy selection reads the request context so one transport can
		// rotate proxies per request while keeping its connection pool.
		var err error
		transport, err = fingerprint.Transport(cfg.Fingerprint, proxy.TransportProxy)
		if err != nil {
			return nil, fmt.Errorf("failed to setup transport: %w", err)
		}
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		Transport: transport,
		UserAgent: cfg.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{
		config:   cfg,
		client:   client,
		limiters: ratelimit.NewSet(cfg.RequestsPerSecond, cfg.Jitter),
		logger:   logger,
	}, nil
}

// call describes one provider request.
type call struct {
	source   result.Source
	endpoint string
	params   url.Values
	header   http.Header
	// secret names query parameters that carry credentials; they are kept
	// out of cache keys and logs.
	secret []string
}

func (c call) url() string {
	if len(c.params) == 0 {
		return c.endpoint
	}
	return c.endpoint + "?" + c.params.Encode()
}

// public returns the params with credentials removed.
func (c call) public() url.Values {
	out := make(url.Values, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	for _, k := range c.secret {
		delete(out, k)
	}
	return out
}

func (c call) logURL() string {
	pub := c.public()
	if len(pub) == 0 {
		return c.endpoint
	}
	return c.endpoint + "?" + pub.Encode()
}

// redact scrubs credential values from err's message. The error chain is
// preserved for errors.As.
func (c call) redact(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	scrubbed := msg
	for _, k := range c.secret {
		for _, v := range c.params[k] {
			if v == "" {
				continue
			}
			scrubbed = strings.ReplaceAll(scrubbed, url.QueryEscape(v), "REDACTED")
			scrubbed = strings.ReplaceAll(scrubbed, v, "REDACTED")
		}
	}
	if scrubbed == msg {
		return err
	}
	return &redactedError{msg: scrubbed, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }

func (c call) cacheKey() cache.Key {
	return cache.NewKey(string(c.source), c.endpoint, c.public())
}

// getJSON performs a single GET and decodes the body into out.
func (f *Fetcher) getJSON(ctx context.Context, c call, out any) error {
	if err := f.limiters.For(string(c.source)).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter failed: %w", err)
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next(string(c.source))
		ctx = proxy.WithProxy(ctx, activeProxy)
	}

	err := c.redact(f.client.GetJSON(ctx, c.url(), c.header, out))
	protection := bypass.Detect(err)
	if protection != "" {
		metrics.BlockedResponsesTotal.WithLabelValues(string(c.source), protection).Inc()
		err = fmt.Errorf("blocked by %s: %w", protection, err)
	}

	if activeProxy != nil && (err == nil || ctx.Err() == nil) {
		_ = f.config.ProxyPool.Report(activeProxy, string(c.source), proxyResult(err, protection))
	}
	return err
}

// proxyResult judges the proxy, not the provider: any HTTP answer means the
// proxy works unless the provider is refusing its traffic.
func proxyResult(err error, protection string) proxy.Result {
	if err == nil {
		return proxy.Success
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		if protection != "" || statusErr.Code == http.StatusTooManyRequests {
			return proxy.Blocked
		}
		return proxy.Success
	}
	var decodeErr *httpclient.DecodeError
	if errors.As(err, &decodeErr) {
		return proxy.Success
	}
	return proxy.Failed
}

// errIncomplete is returned by a normalize func alongside usable results
// when part of the payload could not be resolved. The results are served
// but not cached.
var errIncomplete = errors.New("incomplete results")

// fetch runs the cached request/normalize cycle for one provider call.
// normalize may return a *Failure for provider-level errors reported inside
// a 2xx body.
func fetch[T any](ctx context.Context, f *Fetcher, c call, normalize func(context.Context, *T) ([]result.SearchResult, error)) Outcome {
	key := c.cacheKey()
	if cached, ok := f.config.Cache.Get(ctx, key); ok {
		f.logger.Debug("cache hit", "source", c.source, "results", len(cached))
		return Outcome{Source: c.source, Results: cached, Cached: true}
	}

	start := time.Now()
	var payload T
	err := f.getJSON(ctx, c, &payload)

	var results []result.SearchResult
	if err == nil {
		results, err = normalize(ctx, &payload)
	}
	incomplete := errors.Is(err, errIncomplete)
	if incomplete {
		err = nil
	}
	if err != nil {
		kind := classify(err)
		metrics.RecordAdapter(string(c.source), string(kind), time.Since(start), 0)
		return Outcome{Source: c.source, Kind: kind, Err: err}
	}

	if results == nil {
		results = []result.SearchResult{}
	}
	metrics.RecordAdapter(string(c.source), "ok", time.Since(start), len(results))
	if incomplete || ctx.Err() != nil {
		f.logger.Debug("not caching incomplete results", "source", c.source, "results", len(results))
		return Outcome{Source: c.source, Results: results}
	}
	f.config.Cache.Put(ctx, key, results, f.config.CacheTTL)
	return Outcome{Source: c.source, Results: results}
}

// report logs a failed outcome for operators. The caller still receives
// the Outcome; nothing is raised.
func (f *Fetcher) report(o Outcome, c call) {
	if o.OK() {
		return
	}
	f.logger.Warn("source request failed",
		"source", o.Source,
		"kind", o.Kind,
		"url", c.logURL(),
		"err", o.Err,
	)
}

// guard converts a panic inside an adapter into a failed Outcome so a
// malformed payload can never take the aggregator down.
func guard(src result.Source, out *Outcome) {
	if r := recover(); r != nil {
		*out = Outcome{Source: src, Kind: FailureDecode, Err: fmt.Errorf("adapter panic: %v", r)}
	}
}
