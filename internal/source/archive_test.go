package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/FranksOps/quarry/internal/result"
)

const archiveBody = `{"response":{"numFound":2,"docs":[
	{"identifier":"cats-1","title":["A","B"],"creator":["X","Y"],"description":"<p>Two <b>cats</b></p>","date":"1999-01-01T00:00:00Z","mediatype":"movies"},
	{"identifier":"cats-2","creator":"Solo"},
	{"title":"no identifier"}
]}}`

func TestArchive_RequestAndNormalize(t *testing.T) {
	rec := &recorder{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		_, _ = w.Write([]byte(archiveBody))
	}))
	defer ts.Close()

	a := NewArchive(newTestFetcher(t, nil), Options{Endpoints: endpoints(ts.URL)})
	out := a.Search(context.Background(), Request{
		Query: "cats",
		Filters: result.Filters{
			ContentType: "video",
			Sort:        result.SortDate,
			Lang:        "eng",
			DateFrom:    "2000",
			Page:        2,
		},
	})
	if !out.OK() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}

	got := rec.query(-1)
	if q := got.Get("q"); q != "cats AND mediatype:movies AND language:eng AND date:[2000 TO *]" {
		t.Errorf("unexpected q: %q", q)
	}
	if got.Get("start") != "50" || got.Get("rows") != "50" {
		t.Errorf("expected start=50 rows=50, got start=%s rows=%s", got.Get("start"), got.Get("rows"))
	}
	if got.Get("page") != "" {
		t.Errorf("archive paginates by offset only, got page=%s", got.Get("page"))
	}
	if got.Get("sort[]") != "date desc" {
		t.Errorf("unexpected sort: %q", got.Get("sort[]"))
	}
	if len(got["fl[]"]) != len(archiveFields) {
		t.Errorf("unexpected fields: %v", got["fl[]"])
	}

	if len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out.Results))
	}
	first := out.Results[0]
	if first.Title != "A" {
		t.Errorf("expected title A, got %q", first.Title)
	}
	if first.Author != "X, Y" {
		t.Errorf("expected author 'X, Y', got %q", first.Author)
	}
	if first.Description != "Two cats" {
		t.Errorf("expected stripped description, got %q", first.Description)
	}
	if first.Type != "movies" || first.Source != result.SourceArchive {
		t.Errorf("unexpected type/source: %s/%s", first.Type, first.Source)
	}
	if first.URL != "https://archive.org/details/cats-1" || first.ThumbnailURL() != "https://archive.org/services/img/cats-1" {
		t.Errorf("unexpected links: %s %s", first.URL, first.ThumbnailURL())
	}

	second := out.Results[1]
	if second.Title != result.UntitledPlaceholder || second.Author != "Solo" || second.Type != result.TypeTexts {
		t.Errorf("unexpected defaults: %+v", second)
	}
	if second.Description != "" {
		t.Errorf("expected empty description, got %q", second.Description)
	}
}

func TestArchive_FallbackOnFailure(t *testing.T) {
	rec := &recorder{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		if strings.Contains(r.URL.Query().Get("q"), " AND ") {
			http.Error(w, "query too complex", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(archiveBody))
	}))
	defer ts.Close()

	a := NewArchive(newTestFetcher(t, nil), Options{Endpoints: endpoints(ts.URL)})
	out := a.Search(context.Background(), Request{
		Query:   "cats",
		Filters: result.Filters{ContentType: "texts", Sort: result.SortPopular, Page: 3},
	})

	if !out.OK() {
		t.Fatalf("expected fallback to succeed, got %v", out.Err)
	}
	if !out.Fallback {
		t.Errorf("expected outcome to be marked as fallback")
	}
	if len(out.Results) != 2 {
		t.Errorf("expected fallback results, got %d", len(out.Results))
	}

	if rec.count() != 2 {
		t.Fatalf("expected primary + fallback requests, got %d", rec.count())
	}
	fb := rec.query(1)
	if fb.Get("q") != "cats" {
		t.Errorf("fallback must carry the bare query, got %q", fb.Get("q"))
	}
	if fb.Get("sort[]") != "" {
		t.Errorf("fallback must not sort, got %q", fb.Get("sort[]"))
	}
	if fb.Get("start") != "100" {
		t.Errorf("fallback keeps the page offset, got start=%s", fb.Get("start"))
	}
}

func TestArchive_FallbackAlsoFails(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	a := NewArchive(newTestFetcher(t, nil), Options{Endpoints: endpoints(ts.URL)})
	out := a.Search(context.Background(), Request{Query: "cats"})

	if out.OK() {
		t.Fatal("expected failure")
	}
	if calls.Load() != 2 {
		t.Errorf("expected exactly one retry, got %d calls", calls.Load())
	}
	if out.Kind != FailureStatus || !out.Fallback || len(out.Results) != 0 {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestArchive_NoRetryWhenCanceled(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewArchive(newTestFetcher(t, nil), Options{Endpoints: endpoints(ts.URL)})
	out := a.Search(ctx, Request{Query: "cats"})
	if out.OK() || out.Fallback {
		t.Errorf("expected a plain failure, got %+v", out)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no requests after cancel, got %d", calls.Load())
	}
}

func TestArchiveQuery(t *testing.T) {
	tests := []struct {
		name    string
		filters result.Filters
		want    string
	}{
		{"no filters", result.Filters{ContentType: "all"}, "cats"},
		{"article maps to texts", result.Filters{ContentType: "article"}, "cats AND mediatype:texts"},
		{"audio passes through", result.Filters{ContentType: "audio"}, "cats AND mediatype:audio"},
		{"date range", result.Filters{DateFrom: "1990", DateTo: "2000"}, "cats AND date:[1990 TO 2000]"},
		{"upper bound only", result.Filters{DateTo: "2000"}, "cats AND date:[* TO 2000]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := archiveQuery("cats", tt.filters.Normalized()); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
