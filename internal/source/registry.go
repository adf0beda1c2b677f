package source

import (
	"fmt"
	"sort"

	"github.com/FranksOps/quarry/internal/result"
)

// Keys holds provider credentials. Empty keys fall back to a placeholder the
// provider rejects.
type Keys struct {
	Unsplash string
	Pixabay  string
	Pexels   string
	Flickr   string
}

// Options configures the adapters built by NewRegistry.
type Options struct {
	Keys Keys
	// PageSize is the number of rows requested from paginated image and
	// archive providers.
	PageSize int
	// Limit caps the result count for wikipedia, wikimedia, openlibrary and
	// unsplash.
	Limit int
	// EnrichConcurrency bounds the wikimedia per-item thumbnail lookups.
	EnrichConcurrency int
	// Endpoints overrides provider base URLs, keyed by source.
	Endpoints map[result.Source]string
}

const (
	DefaultPageSize          = 50
	DefaultLimit             = 20
	DefaultEnrichConcurrency = 4
)

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.EnrichConcurrency <= 0 {
		o.EnrichConcurrency = DefaultEnrichConcurrency
	}
	return o
}

func (o Options) endpoint(src result.Source, def string) string {
	if ep, ok := o.Endpoints[src]; ok && ep != "" {
		return ep
	}
	return def
}

// Registry maps source ids to adapters.
type Registry struct {
	adapters map[result.Source]Adapter
}

// NewRegistry builds every known adapter on top of one Fetcher.
func NewRegistry(f *Fetcher, opts Options) *Registry {
	opts = opts.withDefaults()
	r := &Registry{adapters: make(map[result.Source]Adapter, len(result.AllSources))}
	r.Register(NewArchive(f, opts))
	r.Register(NewWikipedia(f, opts))
	r.Register(NewUnsplash(f, opts))
	r.Register(NewOpenLibrary(f, opts))
	r.Register(NewWikimedia(f, opts))
	r.Register(NewPixabay(f, opts))
	r.Register(NewPexels(f, opts))
	r.Register(NewFlickr(f, opts))
	return r
}

// NewEmptyRegistry returns a registry with no adapters, for callers that
// register their own.
func NewEmptyRegistry() *Registry {
	return &Registry{adapters: make(map[result.Source]Adapter)}
}

// Register adds or replaces the adapter for a.ID().
func (r *Registry) Register(a Adapter) {
	r.adapters[a.ID()] = a
}

// Get returns the adapter for id.
func (r *Registry) Get(id result.Source) (Adapter, error) {
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for source %q", id)
	}
	return a, nil
}

// Sources lists registered source ids in canonical order, followed by any
// unknown ids sorted by name.
func (r *Registry) Sources() []result.Source {
	out := make([]result.Source, 0, len(r.adapters))
	seen := make(map[result.Source]bool, len(r.adapters))
	for _, id := range result.AllSources {
		if _, ok := r.adapters[id]; ok {
			out = append(out, id)
			seen[id] = true
		}
	}
	var extra []result.Source
	for id := range r.adapters {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
