package source

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/FranksOps/quarry/internal/result"
)

const (
	openLibraryEndpoint = "https://openlibrary.org/search.json"
	openLibraryBase     = "https://openlibrary.org"
	openLibraryCovers   = "https://covers.openlibrary.org/b/id/"
)

// OpenLibrary searches the Open Library catalog.
type OpenLibrary struct {
	fetcher  *Fetcher
	endpoint string
	limit    int
}

var _ Adapter = (*OpenLibrary)(nil)

// NewOpenLibrary creates the Open Library adapter.
func NewOpenLibrary(f *Fetcher, opts Options) *OpenLibrary {
	opts = opts.withDefaults()
	return &OpenLibrary{
		fetcher:  f,
		endpoint: opts.endpoint(result.SourceOpenLibrary, openLibraryEndpoint),
		limit:    opts.Limit,
	}
}

func (o *OpenLibrary) ID() result.Source { return result.SourceOpenLibrary }

type openLibraryResponse struct {
	Docs []openLibraryDoc `json:"docs"`
}

type openLibraryDoc struct {
	Key              string        `json:"key"`
	Title            result.Text   `json:"title"`
	Subtitle         result.Text   `json:"subtitle"`
	FirstSentence    sentence      `json:"first_sentence"`
	AuthorName       result.Text   `json:"author_name"`
	FirstPublishYear result.Number `json:"first_publish_year"`
	CoverID          result.Number `json:"cover_i"`
}

// sentence accepts {"value": "..."} as well as a string or list of strings.
type sentence string

func (s *sentence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Value result.Text `json:"value"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*s = sentence(obj.Value.First())
		return nil
	}
	var t result.Text
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	*s = sentence(t.First())
	return nil
}

func (o *OpenLibrary) Search(ctx context.Context, req Request) (out Outcome) {
	defer guard(o.ID(), &out)
	filters := req.Filters.Normalized()

	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("limit", strconv.Itoa(o.limit))
	params.Set("page", strconv.Itoa(filters.Page))
	if filters.Sort == result.SortDate {
		params.Set("sort", "new")
	}
	if filters.Lang != "" {
		params.Set("lang", filters.Lang)
	}
	c := call{source: o.ID(), endpoint: o.endpoint, params: params}

	out = fetch(ctx, o.fetcher, c, func(_ context.Context, resp *openLibraryResponse) ([]result.SearchResult, error) {
		results := make([]result.SearchResult, 0, len(resp.Docs))
		for _, doc := range resp.Docs {
			if doc.Key == "" {
				continue
			}
			var thumb *string
			if doc.CoverID.Int() > 0 {
				thumb = result.Thumb(openLibraryCovers + doc.CoverID.String() + "-M.jpg")
			}
			desc := string(doc.FirstSentence)
			if strings.TrimSpace(desc) == "" {
				desc = doc.Subtitle.First()
			}
			results = append(results, result.SearchResult{
				ID:          doc.Key,
				Title:       result.OrDefault(doc.Title.First(), result.UntitledPlaceholder),
				Description: desc,
				Author:      doc.AuthorName.Join(),
				Date:        doc.FirstPublishYear.String(),
				Type:        result.TypeBook,
				Source:      result.SourceOpenLibrary,
				URL:         openLibraryBase + doc.Key,
				Thumbnail:   thumb,
			})
		}
		return results, nil
	})
	o.fetcher.report(out, c)
	return out
}
