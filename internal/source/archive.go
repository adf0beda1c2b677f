package source

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/FranksOps/quarry/internal/metrics"
	"github.com/FranksOps/quarry/internal/result"
)

const (
	archiveEndpoint = "https://archive.org/advancedsearch.php"
	archiveDetails  = "https://archive.org/details/"
	archiveThumb    = "https://archive.org/services/img/"
)

var archiveFields = []string{"identifier", "title", "creator", "description", "date", "mediatype"}

// archiveMediatypes maps content types onto archive.org mediatype values.
// Unlisted types pass through unchanged.
var archiveMediatypes = map[string]string{
	"video":   "movies",
	"movies":  "movies",
	"article": "texts",
}

// Archive searches the Internet Archive advanced search API.
type Archive struct {
	fetcher  *Fetcher
	endpoint string
	rows     int
}

var _ Adapter = (*Archive)(nil)

// NewArchive creates the Internet Archive adapter. Requests go through f,
// which owns caching and rate limiting.
func NewArchive(f *Fetcher, opts Options) *Archive {
	opts = opts.withDefaults()
	return &Archive{
		fetcher:  f,
		endpoint: opts.endpoint(result.SourceArchive, archiveEndpoint),
		rows:     opts.PageSize,
	}
}

func (a *Archive) ID() result.Source { return result.SourceArchive }

type archiveResponse struct {
	Response struct {
		NumFound int          `json:"numFound"`
		Docs     []archiveDoc `json:"docs"`
	} `json:"response"`
}

type archiveDoc struct {
	Identifier  result.Text `json:"identifier"`
	Title       result.Text `json:"title"`
	Creator     result.Text `json:"creator"`
	Description result.Text `json:"description"`
	Date        result.Text `json:"date"`
	Mediatype   result.Text `json:"mediatype"`
}

// Search runs the filtered query and, if that fails, one retry with the bare
// free-text query.
func (a *Archive) Search(ctx context.Context, req Request) (out Outcome) {
	defer guard(a.ID(), &out)
	filters := req.Filters.Normalized()

	primary := a.call(archiveQuery(req.Query, filters), filters, true)
	out = fetch(ctx, a.fetcher, primary, a.normalize)
	if out.OK() || ctx.Err() != nil {
		a.fetcher.report(out, primary)
		return out
	}

	a.fetcher.logger.Info("archive request failed, retrying without filters",
		"kind", out.Kind, "err", out.Err)
	metrics.FallbackRequestsTotal.WithLabelValues(string(a.ID())).Inc()

	fallback := a.call(req.Query, filters, false)
	retry := fetch(ctx, a.fetcher, fallback, a.normalize)
	retry.Fallback = true
	if !retry.OK() {
		retry.Err = errors.Join(out.Err, retry.Err)
	}
	a.fetcher.report(retry, fallback)
	return retry
}

func (a *Archive) call(q string, f result.Filters, withSort bool) call {
	params := url.Values{}
	params.Set("q", q)
	params["fl[]"] = append([]string(nil), archiveFields...)
	params.Set("rows", strconv.Itoa(a.rows))
	params.Set("start", strconv.Itoa((f.Page-1)*a.rows))
	params.Set("output", "json")
	if withSort {
		switch f.Sort {
		case result.SortDate:
			params.Set("sort[]", "date desc")
		case result.SortPopular:
			params.Set("sort[]", "downloads desc")
		}
	}
	return call{source: a.ID(), endpoint: a.endpoint, params: params}
}

// archiveQuery combines the free text with mediatype, language and date clauses.
func archiveQuery(query string, f result.Filters) string {
	var b strings.Builder
	b.WriteString(query)
	if ct := strings.ToLower(f.ContentType); ct != "" && ct != result.ContentAll {
		mediatype, ok := archiveMediatypes[ct]
		if !ok {
			mediatype = ct
		}
		b.WriteString(" AND mediatype:" + mediatype)
	}
	if f.Lang != "" {
		b.WriteString(" AND language:" + f.Lang)
	}
	if f.DateFrom != "" || f.DateTo != "" {
		b.WriteString(" AND date:[" + orStar(f.DateFrom) + " TO " + orStar(f.DateTo) + "]")
	}
	return b.String()
}

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

func (a *Archive) normalize(_ context.Context, resp *archiveResponse) ([]result.SearchResult, error) {
	out := make([]result.SearchResult, 0, len(resp.Response.Docs))
	seen := make(map[string]bool, len(resp.Response.Docs))
	for _, doc := range resp.Response.Docs {
		id := doc.Identifier.First()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, result.SearchResult{
			ID:          id,
			Title:       result.OrDefault(doc.Title.First(), result.UntitledPlaceholder),
			Description: result.StripHTML(doc.Description.First()),
			Author:      doc.Creator.Join(),
			Date:        doc.Date.First(),
			Type:        result.OrDefault(doc.Mediatype.First(), result.TypeTexts),
			Source:      result.SourceArchive,
			URL:         archiveDetails + url.PathEscape(id),
			Thumbnail:   result.Thumb(archiveThumb + url.PathEscape(id)),
		})
	}
	return out, nil
}
