// Package aggregator fans one query out to several source adapters, waits
// for all of them and concatenates their results in selection order.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/quarry/internal/result"
	"github.com/FranksOps/quarry/internal/source"
)

// Adapters resolves a source id to its adapter.
type Adapters interface {
	Get(id result.Source) (source.Adapter, error)
}

// Failure records an adapter that contributed nothing because it failed.
type Failure struct {
	Source result.Source      `json:"source"`
	Kind   source.FailureKind `json:"kind"`
	Err    string             `json:"error"`
}

// Page is the merged output of one fan-out.
type Page struct {
	Query   string                `json:"query"`
	Filters result.Filters        `json:"filters"`
	Results []result.SearchResult `json:"results"`
	// Failures lists the adapters whose outcome was coerced to no results.
	Failures []Failure `json:"failures,omitempty"`
	// Cached counts adapters served from the cache.
	Cached int `json:"cached"`
}

// Config configures an Aggregator.
type Config struct {
	Adapters Adapters
	Logger   *slog.Logger
}

// Aggregator runs adapters concurrently and joins their outcomes.
type Aggregator struct {
	adapters Adapters
	logger   *slog.Logger
}

// New creates an Aggregator.
func New(cfg Config) *Aggregator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{adapters: cfg.Adapters, logger: logger}
}

// Aggregate invokes every selected adapter concurrently and waits for all of
// them. Results are concatenated in the order of sources; a failed adapter
// contributes nothing and is listed in Page.Failures. Aggregate never returns
// an error for adapter failures.
func (a *Aggregator) Aggregate(ctx context.Context, query string, sources []result.Source, filters result.Filters) Page {
	start := time.Now()
	filters = filters.Normalized()
	req := source.Request{Query: query, Filters: filters}

	// One slot per source keeps the output in selection order regardless of
	// completion order.
	outcomes := make([]source.Outcome, len(sources))
	var g errgroup.Group
	for i, id := range sources {
		g.Go(func() error {
			outcomes[i] = a.invoke(ctx, id, req)
			return nil
		})
	}
	_ = g.Wait()

	page := Page{Query: query, Filters: filters, Results: []result.SearchResult{}}
	for _, o := range outcomes {
		if !o.OK() {
			page.Failures = append(page.Failures, Failure{Source: o.Source, Kind: o.Kind, Err: o.Err.Error()})
			continue
		}
		if o.Cached {
			page.Cached++
		}
		page.Results = append(page.Results, o.Results...)
	}

	a.logger.Info("aggregate complete",
		"query", query,
		"page", filters.Page,
		"sources", len(sources),
		"results", len(page.Results),
		"failures", len(page.Failures),
		"duration", time.Since(start),
	)
	return page
}

// invoke runs one adapter. A panic or a missing adapter becomes a failed
// Outcome so the join always completes.
func (a *Aggregator) invoke(ctx context.Context, id result.Source, req source.Request) (out source.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = source.Outcome{Source: id, Kind: source.FailureDecode, Err: fmt.Errorf("adapter panic: %v", r)}
		}
	}()

	adapter, err := a.adapters.Get(id)
	if err != nil {
		return source.Outcome{Source: id, Kind: source.FailureConfig, Err: err}
	}
	out = adapter.Search(ctx, req)
	out.Source = id
	return out
}
