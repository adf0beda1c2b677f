package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/FranksOps/quarry/internal/metrics"
	"github.com/FranksOps/quarry/internal/result"
	"github.com/FranksOps/quarry/internal/storage"
)

// DefaultTTL is how long an adapter response is honoured.
const DefaultTTL = time.Hour

// keyPrefix namespaces cache entries inside a shared storage.Backend.
const keyPrefix = "cache:"

// Key identifies one fully resolved provider request.
type Key struct {
	Provider string
	Endpoint string
	Params   url.Values
}

// NewKey copies params so later mutation by the caller cannot change the key.
func NewKey(provider, endpoint string, params url.Values) Key {
	cp := make(url.Values, len(params))
	for k, vals := range params {
		cp[k] = append([]string(nil), vals...)
	}
	return Key{Provider: provider, Endpoint: endpoint, Params: cp}
}

// String renders the key canonically. Parameter names are sorted, so two
// requests that differ only in parameter order share a key.
func (k Key) String() string {
	return k.Provider + "|" + k.Endpoint + "?" + k.Params.Encode()
}

// Entry is a cached adapter payload.
type Entry struct {
	Payload   []result.SearchResult `json:"payload"`
	ExpiresAt time.Time             `json:"expiresAt"`
}

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// Config defines the setup for a Cache.
type Config struct {
	// TTL applies when Put is called with a non-positive ttl.
	TTL time.Duration
	// Backend optionally persists entries beyond the process. Its failures
	// are logged and ignored.
	Backend storage.Backend
	Logger  *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Cache stores adapter payloads with per-entry expiry. It is safe for
// concurrent use. A nil *Cache never hits and drops every Put.
type Cache struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]Entry
	hits    int64
	misses  int64
}

// New creates a Cache. Expired entries left in the backend by earlier
// processes are pruned before it is returned.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]Entry),
	}
	if cfg.Backend != nil {
		c.Prune(context.Background())
	}
	return c
}

// Prune deletes expired and unreadable entries from the backend and returns
// how many were removed. Backend failures are logged and ignored.
func (c *Cache) Prune(ctx context.Context) int {
	if c == nil || c.cfg.Backend == nil {
		return 0
	}
	keys, err := c.cfg.Backend.Keys(ctx, keyPrefix)
	if err != nil {
		c.logger.Debug("cache backend list failed", "err", err)
		return 0
	}
	now := c.cfg.Now()
	pruned := 0
	for _, bk := range keys {
		data, err := c.cfg.Backend.Get(ctx, bk)
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err == nil && now.Before(e.ExpiresAt) {
			continue
		}
		if err := c.cfg.Backend.Delete(ctx, bk); err != nil {
			c.logger.Debug("cache backend delete failed", "key", bk, "err", err)
			continue
		}
		pruned++
	}
	if pruned > 0 {
		c.logger.Debug("pruned expired cache entries", "count", pruned)
	}
	return pruned
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.cfg.TTL
}

// Get returns the payload for key when an unexpired entry exists. Absent and
// expired entries are both reported as a miss.
func (c *Cache) Get(ctx context.Context, key Key) ([]result.SearchResult, bool) {
	if c == nil {
		return nil, false
	}
	k := key.String()
	now := c.cfg.Now()

	c.mu.Lock()
	e, ok := c.entries[k]
	if ok && !now.Before(e.ExpiresAt) {
		delete(c.entries, k)
		ok = false
	}
	c.mu.Unlock()

	if !ok && c.cfg.Backend != nil {
		e, ok = c.load(ctx, k, now)
		if ok {
			c.mu.Lock()
			c.entries[k] = e
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
	metrics.RecordCache(ok)

	if !ok {
		return nil, false
	}
	return clone(e.Payload), true
}

func (c *Cache) load(ctx context.Context, k string, now time.Time) (Entry, bool) {
	data, err := c.cfg.Backend.Get(ctx, keyPrefix+k)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Debug("cache backend read failed", "key", k, "err", err)
		}
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Debug("cache backend entry unreadable", "key", k, "err", err)
		return Entry{}, false
	}
	if !now.Before(e.ExpiresAt) {
		if err := c.cfg.Backend.Delete(ctx, keyPrefix+k); err != nil {
			c.logger.Debug("cache backend delete failed", "key", k, "err", err)
		}
		return Entry{}, false
	}
	return e, true
}

// Put stores payload under key for ttl (DefaultTTL when ttl <= 0). It never
// fails from the caller's point of view.
func (c *Cache) Put(ctx context.Context, key Key, payload []result.SearchResult, ttl time.Duration) {
	if c == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}
	k := key.String()
	e := Entry{Payload: clone(payload), ExpiresAt: c.cfg.Now().Add(ttl)}

	c.mu.Lock()
	c.entries[k] = e
	c.mu.Unlock()

	if c.cfg.Backend == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Debug("cache entry not persisted", "key", k, "err", err)
		return
	}
	if err := c.cfg.Backend.Set(ctx, keyPrefix+k, data); err != nil {
		c.logger.Debug("cache backend write failed", "key", k, "err", err)
	}
}

// Stats returns lookup counters and the number of in-memory entries.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}

func clone(in []result.SearchResult) []result.SearchResult {
	if in == nil {
		return nil
	}
	out := make([]result.SearchResult, len(in))
	copy(out, in)
	for i := range out {
		if out[i].Thumbnail != nil {
			th := *out[i].Thumbnail
			out[i].Thumbnail = &th
		}
	}
	return out
}
