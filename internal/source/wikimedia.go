package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/quarry/internal/metrics"
	"github.com/FranksOps/quarry/internal/result"
)

const (
	wikimediaEndpoint   = "https://commons.wikimedia.org/w/api.php"
	wikimediaPage       = "https://commons.wikimedia.org/wiki/"
	wikimediaAuthor     = "Wikimedia Commons"
	wikimediaFileNS     = "6"
	wikimediaThumbWidth = "300"
)

// Wikimedia searches the File namespace of Wikimedia Commons and resolves a
// thumbnail for every hit with a secondary imageinfo lookup.
type Wikimedia struct {
	fetcher     *Fetcher
	endpoint    string
	limit       int
	concurrency int
}

var _ Adapter = (*Wikimedia)(nil)

// NewWikimedia creates the Wikimedia Commons adapter. Search hits are
// enriched with image metadata in a second request.
func NewWikimedia(f *Fetcher, opts Options) *Wikimedia {
	opts = opts.withDefaults()
	return &Wikimedia{
		fetcher:     f,
		endpoint:    opts.endpoint(result.SourceWikimedia, wikimediaEndpoint),
		limit:       opts.Limit,
		concurrency: opts.EnrichConcurrency,
	}
}

func (w *Wikimedia) ID() result.Source { return result.SourceWikimedia }

type imageinfoResponse struct {
	Error *mediawikiError `json:"error"`
	Query struct {
		Pages map[string]struct {
			ImageInfo []struct {
				ThumbURL string        `json:"thumburl"`
				URL      string        `json:"url"`
				Width    result.Number `json:"width"`
				Height   result.Number `json:"height"`
			} `json:"imageinfo"`
		} `json:"pages"`
	} `json:"query"`
}

// Search returns no results past page 1, like Wikipedia.
func (w *Wikimedia) Search(ctx context.Context, req Request) (out Outcome) {
	defer guard(w.ID(), &out)
	filters := req.Filters.Normalized()
	if filters.Page > 1 {
		return Outcome{Source: w.ID(), Results: []result.SearchResult{}}
	}

	c := call{
		source:   w.ID(),
		endpoint: w.endpoint,
		params:   searchParams(req.Query, wikimediaFileNS, strconv.Itoa(w.limit), filters),
	}
	out = fetch(ctx, w.fetcher, c, w.normalize)
	w.fetcher.report(out, c)
	return out
}

func (w *Wikimedia) normalize(ctx context.Context, resp *mediawikiSearch) ([]result.SearchResult, error) {
	if err := resp.Error.check(); err != nil {
		return nil, err
	}
	results := make([]result.SearchResult, 0, len(resp.Query.Search))
	for _, hit := range resp.Query.Search {
		if hit.PageID == "" || hit.Title == "" {
			continue
		}
		results = append(results, result.SearchResult{
			ID:          hit.PageID.String(),
			Title:       hit.Title,
			Description: result.StripHTML(hit.Snippet),
			Author:      wikimediaAuthor,
			Date:        hit.Timestamp,
			Type:        result.TypeMedia,
			Source:      result.SourceWikimedia,
			URL:         wikimediaPage + wikiPath(hit.Title),
		})
	}
	if failed := w.enrich(ctx, results); failed > 0 {
		return results, fmt.Errorf("%d of %d thumbnail lookups failed: %w", failed, len(results), errIncomplete)
	}
	return results, nil
}

// enrich resolves thumbnails with bounded concurrency and returns how many
// lookups failed. Each goroutine owns one slot of results; a failed lookup
// leaves that item's thumbnail nil.
func (w *Wikimedia) enrich(ctx context.Context, results []result.SearchResult) int {
	var g errgroup.Group
	var failed atomic.Int32
	g.SetLimit(w.concurrency)
	for i := range results {
		g.Go(func() error {
			if err := w.imageinfo(ctx, &results[i]); err != nil {
				failed.Add(1)
				metrics.EnrichFailuresTotal.WithLabelValues(string(w.ID())).Inc()
				w.fetcher.logger.Debug("thumbnail lookup failed",
					"source", w.ID(), "title", results[i].Title, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(failed.Load())
}

func (w *Wikimedia) imageinfo(ctx context.Context, r *result.SearchResult) error {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", r.Title)
	params.Set("prop", "imageinfo")
	params.Set("iiprop", "url|size")
	params.Set("iiurlwidth", wikimediaThumbWidth)
	params.Set("format", "json")

	var resp imageinfoResponse
	if err := w.fetcher.getJSON(ctx, call{source: w.ID(), endpoint: w.endpoint, params: params}, &resp); err != nil {
		return err
	}
	if err := resp.Error.check(); err != nil {
		return err
	}
	for _, page := range resp.Query.Pages {
		if len(page.ImageInfo) == 0 {
			continue
		}
		info := page.ImageInfo[0]
		r.Thumbnail = result.Thumb(info.ThumbURL)
		r.FullImage = info.URL
		r.Width = info.Width.Int()
		r.Height = info.Height.Int()
		return nil
	}
	return nil
}
