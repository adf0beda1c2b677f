// Package library keeps the local search history and favorites on top of a
// storage.Backend. Both lists are stored newest first as one JSON document
// each.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/quarry/internal/aggregator"
	"github.com/FranksOps/quarry/internal/result"
	"github.com/FranksOps/quarry/internal/storage"
)

const (
	MaxHistory   = 50
	MaxFavorites = 100

	historyKey   = "library:history"
	favoritesKey = "library:favorites"
)

// ensure Library can record searches for a session
var _ aggregator.HistoryRecorder = (*Library)(nil)

// HistoryEntry is one past search.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searchedAt"`
}

// Favorite is a saved result. Favorites are unique by URL.
type Favorite struct {
	ID      string              `json:"id"`
	AddedAt time.Time           `json:"addedAt"`
	Result  result.SearchResult `json:"result"`
}

// Config configures a Library.
type Config struct {
	Backend storage.Backend
	Logger  *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Library manages history and favorites. It is safe for concurrent use.
type Library struct {
	backend storage.Backend
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
}

// New creates a Library. A nil backend keeps everything in memory.
func New(cfg Config) *Library {
	backend := cfg.Backend
	if backend == nil {
		backend = storage.NewMemory()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Library{backend: backend, logger: logger, now: now}
}

// AddHistory moves query to the front of the history, dropping an older
// identical entry and trimming the list to MaxHistory.
func (l *Library) AddHistory(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	history := load[HistoryEntry](ctx, l, historyKey)

	out := make([]HistoryEntry, 0, len(history)+1)
	out = append(out, HistoryEntry{ID: uuid.NewString(), Query: query, SearchedAt: l.now().UTC()})
	for _, h := range history {
		if h.Query != query {
			out = append(out, h)
		}
	}
	if len(out) > MaxHistory {
		out = out[:MaxHistory]
	}
	return l.save(ctx, historyKey, out)
}

// RecordSearch adds query to the history, logging instead of failing.
func (l *Library) RecordSearch(ctx context.Context, query string) {
	if err := l.AddHistory(ctx, query); err != nil {
		l.logger.Warn("failed to record search history", "err", err)
	}
}

// History returns the stored searches, newest first.
func (l *Library) History(ctx context.Context) []HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	history := load[HistoryEntry](ctx, l, historyKey)
	return history
}

// ClearHistory removes every history entry.
func (l *Library) ClearHistory(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.backend.Delete(ctx, historyKey); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// AddFavorite saves r at the front of the favorites. It reports false when a
// favorite with the same URL already exists.
func (l *Library) AddFavorite(ctx context.Context, r result.SearchResult) (bool, error) {
	if strings.TrimSpace(r.URL) == "" {
		return false, errors.New("favorite requires a url")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	favs := load[Favorite](ctx, l, favoritesKey)
	for _, f := range favs {
		if f.Result.URL == r.URL {
			return false, nil
		}
	}

	favs = append([]Favorite{{ID: uuid.NewString(), AddedAt: l.now().UTC(), Result: r}}, favs...)
	if len(favs) > MaxFavorites {
		favs = favs[:MaxFavorites]
	}
	if err := l.save(ctx, favoritesKey, favs); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveFavorite deletes the favorite with the given URL and reports whether
// one existed.
func (l *Library) RemoveFavorite(ctx context.Context, url string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	favs := load[Favorite](ctx, l, favoritesKey)
	out := favs[:0]
	for _, f := range favs {
		if f.Result.URL != url {
			out = append(out, f)
		}
	}
	if len(out) == len(favs) {
		return false, nil
	}
	if err := l.save(ctx, favoritesKey, out); err != nil {
		return false, err
	}
	return true, nil
}

// IsFavorite reports whether a favorite with the given URL exists.
func (l *Library) IsFavorite(ctx context.Context, url string) bool {
	for _, f := range l.Favorites(ctx) {
		if f.Result.URL == url {
			return true
		}
	}
	return false
}

// Favorites returns the saved results, newest first.
func (l *Library) Favorites(ctx context.Context) []Favorite {
	l.mu.Lock()
	defer l.mu.Unlock()
	favs := load[Favorite](ctx, l, favoritesKey)
	return favs
}

// load decodes the list stored under key. Missing, unreadable and corrupt
// documents all read as an empty list.
func load[T any](ctx context.Context, l *Library, key string) []T {
	data, err := l.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			l.logger.Warn("failed to read library", "key", key, "err", err)
		}
		return nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		l.logger.Warn("discarding corrupt library document", "key", key, "err", err)
		return nil
	}
	return out
}

func (l *Library) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := l.backend.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
