// Package app wires configuration into the running components: storage
// backends, the cached fetch path, the adapter registry, the aggregator and
// the library.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/FranksOps/quarry/internal/aggregator"
	"github.com/FranksOps/quarry/internal/cache"
	"github.com/FranksOps/quarry/internal/config"
	"github.com/FranksOps/quarry/internal/fingerprint"
	"github.com/FranksOps/quarry/internal/library"
	"github.com/FranksOps/quarry/internal/metrics"
	"github.com/FranksOps/quarry/internal/result"
	"github.com/FranksOps/quarry/internal/source"
	"github.com/FranksOps/quarry/internal/storage"
	"github.com/FranksOps/quarry/internal/storage/jsonbackend"
	"github.com/FranksOps/quarry/internal/storage/postgres"
	"github.com/FranksOps/quarry/internal/storage/sqlite"
	"github.com/FranksOps/quarry/pkg/proxy"
)

// App holds the wired components for one process.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Cache      *cache.Cache
	Registry   *source.Registry
	Aggregator *aggregator.Aggregator
	Library    *library.Library

	metrics *metrics.Server
	closers []func() error
}

// Options adjusts wiring beyond what Config expresses.
type Options struct {
	// Endpoints overrides provider base URLs, keyed by source.
	Endpoints map[result.Source]string
	// SkipLibrary leaves Library nil, for commands that never touch it.
	SkipLibrary bool
}

// New builds an App. Call Close to release storage handles.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.buildCache(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	pool, err := buildProxyPool(cfg.HTTP)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	profile, err := fingerprint.ParseProfile(cfg.HTTP.Fingerprint)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	fetcher, err := source.NewFetcher(source.FetchConfig{
		Timeout:           cfg.HTTP.Timeout,
		Fingerprint:       profile,
		ProxyPool:         pool,
		RequestsPerSecond: cfg.HTTP.RPS,
		Jitter:            cfg.HTTP.Jitter,
		UserAgent:         cfg.HTTP.UserAgent,
		Cache:             a.Cache,
		CacheTTL:          cfg.Cache.TTL,
		Logger:            logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	a.Registry = source.NewRegistry(fetcher, source.Options{
		Keys:              cfg.SourceKeys(),
		PageSize:          cfg.Results.PageSize,
		Limit:             cfg.Results.Limit,
		EnrichConcurrency: cfg.Enrich.Concurrency,
		Endpoints:         opts.Endpoints,
	})
	a.Aggregator = aggregator.New(aggregator.Config{Adapters: a.Registry, Logger: logger})

	if !opts.SkipLibrary {
		backend, err := OpenBackend(ctx, cfg.Library.Backend, cfg.Library.DSN)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open library: %w", err)
		}
		a.closers = append(a.closers, backend.Close)
		a.Library = library.New(library.Config{Backend: backend, Logger: logger})
	}

	if cfg.Metrics.Port > 0 {
		a.metrics = metrics.Start(cfg.Metrics.Port, logger)
	}
	return a, nil
}

func (a *App) buildCache(ctx context.Context) error {
	c := a.Config.Cache
	if strings.EqualFold(c.Backend, config.BackendNone) {
		return nil
	}
	var backend storage.Backend
	if !strings.EqualFold(c.Backend, config.BackendMemory) {
		b, err := OpenBackend(ctx, c.Backend, c.DSN)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		a.closers = append(a.closers, b.Close)
		backend = b
	}
	a.Cache = cache.New(cache.Config{TTL: c.TTL, Backend: backend, Logger: a.Logger})
	return nil
}

func buildProxyPool(h config.HTTP) (*proxy.Pool, error) {
	if len(h.Proxies) == 0 && h.ProxyFile == "" {
		return nil, nil
	}
	pool := proxy.NewPool(proxy.Config{})
	if len(h.Proxies) > 0 {
		if err := pool.Add(h.Proxies...); err != nil {
			return nil, fmt.Errorf("http.proxies: %w", err)
		}
	}
	if h.ProxyFile != "" {
		if err := pool.LoadFile(h.ProxyFile); err != nil {
			return nil, fmt.Errorf("http.proxy_file: %w", err)
		}
	}
	return pool, nil
}

// NewSession starts a search session that records history in the library.
func (a *App) NewSession() *aggregator.Session {
	var history aggregator.HistoryRecorder
	if a.Library != nil {
		history = a.Library
	}
	return aggregator.NewSession(a.Aggregator, history)
}

// Sources resolves the configured default sources, or every registered
// source when none are configured.
func (a *App) Sources(ids []string) ([]result.Source, error) {
	if len(ids) == 0 {
		ids = a.Config.Sources
	}
	if len(ids) == 0 {
		return a.Registry.Sources(), nil
	}
	return result.ParseSources(ids)
}

// Close stops the metrics server and closes storage backends.
func (a *App) Close() error {
	var errs []error
	if a.metrics != nil {
		if err := a.metrics.Stop(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenBackend opens a storage backend by kind. File based backends create
// their parent directory.
func OpenBackend(ctx context.Context, kind, dsn string) (storage.Backend, error) {
	switch strings.ToLower(kind) {
	case config.BackendMemory:
		return storage.NewMemory(), nil
	case config.BackendSQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		return sqlite.New(dsn)
	case config.BackendPostgres:
		return postgres.New(ctx, dsn)
	case config.BackendJSON:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		return jsonbackend.New(dsn)
	}
	return nil, fmt.Errorf("unknown storage backend %q", kind)
}

func ensureDir(path string) error {
	if path == "" || strings.HasPrefix(path, "file:") || strings.Contains(path, ":memory:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	return nil
}
