package source

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/FranksOps/quarry/internal/result"
)

const (
	wikipediaEndpoint = "https://{lang}.wikipedia.org/w/api.php"
	wikipediaArticle  = "https://{lang}.wikipedia.org/wiki/"
	wikipediaAuthor   = "Wikipedia"
	defaultLang       = "en"
)

// langPattern guards the subdomain substitution.
var langPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{1,15}$`)

// Wikipedia searches one regional Wikipedia selected by Filters.Lang.
type Wikipedia struct {
	fetcher  *Fetcher
	endpoint string
	limit    int
}

var _ Adapter = (*Wikipedia)(nil)

// NewWikipedia creates the Wikipedia adapter.
func NewWikipedia(f *Fetcher, opts Options) *Wikipedia {
	opts = opts.withDefaults()
	return &Wikipedia{
		fetcher:  f,
		endpoint: opts.endpoint(result.SourceWikipedia, wikipediaEndpoint),
		limit:    opts.Limit,
	}
}

func (w *Wikipedia) ID() result.Source { return result.SourceWikipedia }

// Search returns no results past page 1; the API is queried with a fixed
// result limit only.
func (w *Wikipedia) Search(ctx context.Context, req Request) (out Outcome) {
	defer guard(w.ID(), &out)
	filters := req.Filters.Normalized()
	if filters.Page > 1 {
		return Outcome{Source: w.ID(), Results: []result.SearchResult{}}
	}

	lang := wikiLang(filters.Lang)
	c := call{
		source:   w.ID(),
		endpoint: strings.ReplaceAll(w.endpoint, "{lang}", lang),
		params:   searchParams(req.Query, "", strconv.Itoa(w.limit), filters),
	}
	article := strings.ReplaceAll(wikipediaArticle, "{lang}", lang)

	out = fetch(ctx, w.fetcher, c, func(_ context.Context, resp *mediawikiSearch) ([]result.SearchResult, error) {
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
				Author:      wikipediaAuthor,
				Date:        hit.Timestamp,
				Type:        result.TypeArticle,
				Source:      result.SourceWikipedia,
				URL:         article + wikiPath(hit.Title),
			})
		}
		return results, nil
	})
	w.fetcher.report(out, c)
	return out
}

// wikiLang validates a language code, defaulting to English.
func wikiLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if !langPattern.MatchString(lang) {
		return defaultLang
	}
	return lang
}
