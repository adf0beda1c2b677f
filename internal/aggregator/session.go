package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/FranksOps/quarry/internal/result"
)

var (
	// ErrEmptyQuery is returned when a search is started with a blank query.
	ErrEmptyQuery = errors.New("aggregator: empty query")
	// ErrNoSearch is returned by LoadMore before any search has run.
	ErrNoSearch = errors.New("aggregator: no search to continue")
	// ErrSuperseded is returned when a newer search started while this call
	// was in flight. Its results were discarded.
	ErrSuperseded = errors.New("aggregator: superseded by a newer search")
	// ErrSearchPending is returned when a later page is requested while the
	// newest search has not delivered its first page yet.
	ErrSearchPending = errors.New("aggregator: search still loading its first page")
)

// HistoryRecorder receives every new search query. Implementations are
// best-effort and must not block for long.
type HistoryRecorder interface {
	RecordSearch(ctx context.Context, query string)
}

// Update is what a Search or LoadMore call contributed.
type Update struct {
	Page
	// Total is the size of the accumulated set after the update.
	Total int `json:"total"`
	// More reports whether the newest page contributed results, i.e. whether
	// loading another page is worthwhile.
	More bool `json:"more"`
}

// State is a snapshot of a Session.
type State struct {
	ID      string                `json:"id"`
	Query   string                `json:"query"`
	Sources []result.Source       `json:"sources"`
	Filters result.Filters        `json:"filters"`
	Page    int                   `json:"page"`
	Tab     string                `json:"tab"`
	More    bool                  `json:"more"`
	Results []result.SearchResult `json:"results"`
	Tabs    []result.TabCount     `json:"tabs"`
}

// Session owns the accumulated results of one search and its "load more"
// pages. A page-1 search replaces the accumulated set; later pages append
// to it using the query, sources and filters frozen at page 1. A newer
// search supersedes any call still in flight: the older call's results are
// discarded when it completes. Session is safe for concurrent use.
type Session struct {
	id      string
	agg     *Aggregator
	history HistoryRecorder

	mu         sync.Mutex
	generation uint64
	// loaded is the generation whose first page is in results.
	loaded  uint64
	query   string
	sources []result.Source
	filters result.Filters
	page    int
	more    bool
	tab     string
	results []result.SearchResult
}

// NewSession creates an empty session. history may be nil.
func NewSession(agg *Aggregator, history HistoryRecorder) *Session {
	return &Session{
		id:      uuid.NewString(),
		agg:     agg,
		history: history,
		tab:     result.TabAll,
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Search starts a new search and replaces the accumulated results with its
// first page. The filters' Page field is ignored.
func (s *Session) Search(ctx context.Context, query string, sources []result.Source, filters result.Filters) (Update, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Update{}, ErrEmptyQuery
	}
	filters = filters.WithPage(1)
	frozen := append([]result.Source(nil), sources...)

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.query = query
	s.sources = frozen
	s.filters = filters
	s.mu.Unlock()

	if s.history != nil {
		s.history.RecordSearch(ctx, query)
	}

	page := s.agg.Aggregate(ctx, query, frozen, filters)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.agg.logger.Debug("discarding superseded search", "session", s.id, "query", query)
		return Update{Page: page}, ErrSuperseded
	}
	s.results = cloneResults(page.Results)
	s.loaded = gen
	s.page = 1
	s.more = len(page.Results) > 0
	return Update{Page: page, Total: len(s.results), More: s.more}, nil
}

// LoadMore fetches the page after the last one loaded and appends it.
// Results are not de-duplicated across pages.
func (s *Session) LoadMore(ctx context.Context) (Update, error) {
	s.mu.Lock()
	if s.query == "" {
		s.mu.Unlock()
		return Update{}, ErrNoSearch
	}
	next := s.page + 1
	s.mu.Unlock()
	return s.loadPage(ctx, next, next-1)
}

// Aggregate is the page-addressed form of Search and LoadMore: page 1 (or
// less) starts a new search, any later page appends using the frozen query
// and filters; the query, sources and filters arguments are then ignored.
func (s *Session) Aggregate(ctx context.Context, query string, sources []result.Source, filters result.Filters) (Update, error) {
	if filters.Page <= 1 {
		return s.Search(ctx, query, sources, filters)
	}
	s.mu.Lock()
	started := s.query != ""
	s.mu.Unlock()
	if !started {
		return Update{}, ErrNoSearch
	}
	return s.loadPage(ctx, filters.Page, -1)
}

// loadPage fetches page and appends it. When after is not negative the
// append only happens if page after is still the last one loaded, so two
// overlapping LoadMore calls cannot append the same page twice.
func (s *Session) loadPage(ctx context.Context, page, after int) (Update, error) {
	s.mu.Lock()
	if s.loaded != s.generation {
		s.mu.Unlock()
		return Update{}, ErrSearchPending
	}
	gen := s.generation
	query := s.query
	sources := s.sources
	filters := s.filters.WithPage(page)
	s.mu.Unlock()

	out := s.agg.Aggregate(ctx, query, sources, filters)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.agg.logger.Debug("discarding superseded page", "session", s.id, "query", query, "page", page)
		return Update{Page: out}, ErrSuperseded
	}
	if after >= 0 && s.page != after {
		s.agg.logger.Debug("discarding overlapping page", "session", s.id, "query", query, "page", page)
		return Update{Page: out}, ErrSuperseded
	}
	s.results = append(s.results, out.Results...)
	if page > s.page {
		s.page = page
	}
	s.more = len(out.Results) > 0
	return Update{Page: out, Total: len(s.results), More: s.more}, nil
}

// SetTab selects the source whose results Results returns. It never fetches.
func (s *Session) SetTab(tab string) error {
	tab = strings.ToLower(strings.TrimSpace(tab))
	if tab == "" {
		tab = result.TabAll
	}
	if tab != result.TabAll {
		if _, err := result.ParseSource(tab); err != nil {
			return fmt.Errorf("invalid tab: %w", err)
		}
	}
	s.mu.Lock()
	s.tab = tab
	s.mu.Unlock()
	return nil
}

// Tab returns the active tab.
func (s *Session) Tab() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

// Results returns the accumulated results visible under the active tab.
func (s *Session) Results() []result.SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneResults(result.FilterBySource(s.results, s.tab))
}

// Tabs returns the tab tally of the accumulated set.
func (s *Session) Tabs() []result.TabCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return result.Tally(s.results)
}

// Snapshot returns the session state with results filtered by the active tab.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:      s.id,
		Query:   s.query,
		Sources: append([]result.Source(nil), s.sources...),
		Filters: s.filters,
		Page:    s.page,
		Tab:     s.tab,
		More:    s.more,
		Results: cloneResults(result.FilterBySource(s.results, s.tab)),
		Tabs:    result.Tally(s.results),
	}
}

func cloneResults(in []result.SearchResult) []result.SearchResult {
	out := make([]result.SearchResult, len(in))
	copy(out, in)
	return out
}
