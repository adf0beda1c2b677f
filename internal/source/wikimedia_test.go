package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/quarry/internal/cache"
	"github.com/FranksOps/quarry/internal/result"
)

func TestWikimedia_EnrichesThumbnails(t *testing.T) {
	rec := &recorder{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		q := r.URL.Query()
		switch {
		case q.Get("list") == "search":
			_, _ = w.Write([]byte(`{"query":{"search":[
				{"pageid":1,"title":"File:Cat one.jpg","snippet":"<b>cat</b>","timestamp":"2020-01-01T00:00:00Z"},
				{"pageid":2,"title":"File:Cat two.jpg","snippet":"broken"},
				{"pageid":3,"title":"File:Cat three.jpg","snippet":"no info"}
			]}}`))
		case q.Get("titles") == "File:Cat two.jpg":
			http.Error(w, "boom", http.StatusInternalServerError)
		case q.Get("titles") == "File:Cat three.jpg":
			_, _ = w.Write([]byte(`{"query":{"pages":{"-1":{"missing":""}}}}`))
		default:
			fmt.Fprintf(w, `{"query":{"pages":{"10":{"imageinfo":[{"thumburl":"https://thumb.example/%s","url":"https://full.example/1.jpg","width":4000,"height":3000}]}}}}`, "1.jpg")
		}
	}))
	defer ts.Close()

	wm := NewWikimedia(newTestFetcher(t, nil), Options{Endpoints: endpoints(ts.URL), EnrichConcurrency: 2})
	out := wm.Search(context.Background(), Request{Query: "cat"})
	if !out.OK() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if len(out.Results) != 3 {
		t.Fatalf("a failed thumbnail lookup must not drop the item, got %d results", len(out.Results))
	}

	first := out.Results[0]
	if first.ThumbnailURL() != "https://thumb.example/1.jpg" || first.FullImage != "https://full.example/1.jpg" {
		t.Errorf("unexpected enrichment: %+v", first)
	}
	if first.Width != 4000 || first.Height != 3000 {
		t.Errorf("unexpected dimensions: %dx%d", first.Width, first.Height)
	}
	if first.Type != result.TypeMedia || first.Author != "Wikimedia Commons" {
		t.Errorf("unexpected defaults: %+v", first)
	}
	if first.URL != "https://commons.wikimedia.org/wiki/File:Cat_one.jpg" {
		t.Errorf("unexpected url: %s", first.URL)
	}

	if out.Results[1].HasThumbnail() || out.Results[2].HasThumbnail() {
		t.Errorf("expected nil thumbnails for failed lookups")
	}
	if out.Results[1].ID != "2" || out.Results[2].ID != "3" {
		t.Errorf("provider order must be preserved: %s, %s", out.Results[1].ID, out.Results[2].ID)
	}

	search := rec.query(0)
	if search.Get("srnamespace") != "6" {
		t.Errorf("expected File namespace search, got %v", search)
	}
	if rec.count() != 4 {
		t.Errorf("expected 1 search + 3 imageinfo calls, got %d", rec.count())
	}
}

func TestWikimedia_SearchFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer ts.Close()

	wm := NewWikimedia(newTestFetcher(t, nil), Options{Endpoints: endpoints(ts.URL)})
	out := wm.Search(context.Background(), Request{Query: "cat"})
	if out.OK() || out.Kind != FailureStatus {
		t.Errorf("expected status failure, got %q", out.Kind)
	}
}

func TestWikimedia_FailedEnrichmentIsNotCached(t *testing.T) {
	var searches atomic.Int32
	var healthy atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("list") == "search":
			searches.Add(1)
			_, _ = w.Write([]byte(`{"query":{"search":[
				{"pageid":1,"title":"File:Cat one.jpg"},
				{"pageid":2,"title":"File:Cat two.jpg"}
			]}}`))
		case q.Get("titles") == "File:Cat two.jpg" && !healthy.Load():
			http.Error(w, "busy", http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(`{"query":{"pages":{"10":{"imageinfo":[{"thumburl":"https://thumb.example/t.jpg","url":"https://full.example/f.jpg","width":10,"height":10}]}}}}`))
		}
	}))
	defer ts.Close()

	f := newTestFetcher(t, cache.New(cache.Config{TTL: time.Hour, Logger: quietLogger()}))
	wm := NewWikimedia(f, Options{Endpoints: endpoints(ts.URL)})
	req := Request{Query: "cat"}

	degraded := wm.Search(context.Background(), req)
	if !degraded.OK() || len(degraded.Results) != 2 {
		t.Fatalf("expected both results despite the failed lookup, got %+v", degraded)
	}
	if degraded.Results[1].HasThumbnail() {
		t.Errorf("expected no thumbnail for the failed lookup")
	}

	healthy.Store(true)
	full := wm.Search(context.Background(), req)
	if full.Cached || searches.Load() != 2 {
		t.Fatalf("expected a fresh search after a degraded one, got cached=%v searches=%d", full.Cached, searches.Load())
	}
	if !full.Results[1].HasThumbnail() {
		t.Errorf("expected the retried lookup to resolve a thumbnail")
	}

	again := wm.Search(context.Background(), req)
	if !again.Cached || searches.Load() != 2 {
		t.Errorf("expected the complete results to be served from cache, got cached=%v searches=%d", again.Cached, searches.Load())
	}
}
