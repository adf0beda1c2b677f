package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/FranksOps/quarry/internal/result"
	"github.com/FranksOps/quarry/internal/storage"
)

func newLibrary(b storage.Backend) *Library {
	return New(Config{Backend: b, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func TestHistory_DedupeNewestFirst(t *testing.T) {
	l := newLibrary(nil)
	ctx := context.Background()

	for _, q := range []string{"cats", "dogs", " cats ", "", "birds"} {
		if err := l.AddHistory(ctx, q); err != nil {
			t.Fatalf("AddHistory(%q): %v", q, err)
		}
	}

	h := l.History(ctx)
	want := []string{"birds", "cats", "dogs"}
	if len(h) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), h)
	}
	for i, q := range want {
		if h[i].Query != q {
			t.Errorf("entry %d: got %q, want %q", i, h[i].Query, q)
		}
		if h[i].ID == "" || h[i].SearchedAt.IsZero() {
			t.Errorf("entry %d missing id or timestamp: %+v", i, h[i])
		}
	}
}

func TestHistory_Cap(t *testing.T) {
	l := newLibrary(nil)
	ctx := context.Background()
	for i := range MaxHistory + 10 {
		l.RecordSearch(ctx, fmt.Sprintf("q%d", i))
	}
	h := l.History(ctx)
	if len(h) != MaxHistory {
		t.Fatalf("expected %d entries, got %d", MaxHistory, len(h))
	}
	if h[0].Query != fmt.Sprintf("q%d", MaxHistory+9) {
		t.Errorf("expected newest first, got %q", h[0].Query)
	}

	if err := l.ClearHistory(ctx); err != nil {
		t.Fatal(err)
	}
	if len(l.History(ctx)) != 0 {
		t.Error("expected empty history after clear")
	}
}

func fav(id string) result.SearchResult {
	return result.SearchResult{ID: id, Title: id, Source: result.SourceArchive, URL: "https://archive.org/details/" + id}
}

func TestFavorites_DedupeByURL(t *testing.T) {
	l := newLibrary(nil)
	ctx := context.Background()

	added, err := l.AddFavorite(ctx, fav("a"))
	if err != nil || !added {
		t.Fatalf("expected add, got %v %v", added, err)
	}
	dup := fav("a")
	dup.Title = "different title, same url"
	if added, _ := l.AddFavorite(ctx, dup); added {
		t.Error("expected duplicate url to be ignored")
	}
	_, _ = l.AddFavorite(ctx, fav("b"))

	favs := l.Favorites(ctx)
	if len(favs) != 2 || favs[0].Result.ID != "b" || favs[1].Result.Title != "a" {
		t.Errorf("unexpected favorites: %+v", favs)
	}
	if !l.IsFavorite(ctx, fav("a").URL) {
		t.Error("expected a to be a favorite")
	}

	removed, err := l.RemoveFavorite(ctx, fav("a").URL)
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	if removed, _ := l.RemoveFavorite(ctx, fav("a").URL); removed {
		t.Error("expected second removal to report false")
	}
	if l.IsFavorite(ctx, fav("a").URL) {
		t.Error("a should no longer be a favorite")
	}

	if _, err := l.AddFavorite(ctx, result.SearchResult{ID: "x"}); err == nil {
		t.Error("expected error for favorite without url")
	}
}

func TestFavorites_Cap(t *testing.T) {
	l := newLibrary(nil)
	ctx := context.Background()
	for i := range MaxFavorites + 5 {
		if _, err := l.AddFavorite(ctx, fav(fmt.Sprintf("f%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	favs := l.Favorites(ctx)
	if len(favs) != MaxFavorites {
		t.Fatalf("expected %d favorites, got %d", MaxFavorites, len(favs))
	}
	if favs[0].Result.ID != fmt.Sprintf("f%d", MaxFavorites+4) {
		t.Errorf("expected newest first, got %s", favs[0].Result.ID)
	}
}

func TestLibrary_PersistsThroughBackend(t *testing.T) {
	b := storage.NewMemory()
	ctx := context.Background()
	clock := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	first := New(Config{Backend: b, Now: func() time.Time { return clock }, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	first.RecordSearch(ctx, "cats")
	_, _ = first.AddFavorite(ctx, fav("a"))

	second := newLibrary(b)
	h := second.History(ctx)
	if len(h) != 1 || !h[0].SearchedAt.Equal(clock) {
		t.Errorf("unexpected history: %+v", h)
	}
	if !second.IsFavorite(ctx, fav("a").URL) {
		t.Error("expected favorite to persist")
	}
}

func TestLibrary_CorruptDocumentReadsEmpty(t *testing.T) {
	b := storage.NewMemory()
	ctx := context.Background()
	_ = b.Set(ctx, historyKey, []byte("{not json"))

	l := newLibrary(b)
	if h := l.History(ctx); len(h) != 0 {
		t.Errorf("expected empty history, got %+v", h)
	}
	if err := l.AddHistory(ctx, "cats"); err != nil {
		t.Fatalf("expected recovery from corrupt document, got %v", err)
	}
	if h := l.History(ctx); len(h) != 1 {
		t.Errorf("expected 1 entry after recovery, got %d", len(h))
	}
}

type brokenBackend struct{ storage.Backend }

func (brokenBackend) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (brokenBackend) Set(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func TestLibrary_RecordSearchSwallowsFailures(t *testing.T) {
	l := newLibrary(brokenBackend{storage.NewMemory()})
	ctx := context.Background()

	l.RecordSearch(ctx, "cats")
	if h := l.History(ctx); len(h) != 0 {
		t.Errorf("expected empty history, got %+v", h)
	}
	if err := l.AddHistory(ctx, "cats"); err == nil {
		t.Error("expected AddHistory to report the storage failure")
	}
}
