package source

import (
	"context"
	"net/url"
	"strconv"

	"github.com/FranksOps/quarry/internal/result"
)

const unsplashEndpoint = "https://api.unsplash.com/search/photos"

// Unsplash searches Unsplash photos. The access key is sent as client_id.
type Unsplash struct {
	fetcher  *Fetcher
	endpoint string
	key      string
	limit    int
}

var _ Adapter = (*Unsplash)(nil)

// NewUnsplash creates the Unsplash adapter.
func NewUnsplash(f *Fetcher, opts Options) *Unsplash {
	opts = opts.withDefaults()
	return &Unsplash{
		fetcher:  f,
		endpoint: opts.endpoint(result.SourceUnsplash, unsplashEndpoint),
		key:      opts.Keys.Unsplash,
		limit:    opts.Limit,
	}
}

func (u *Unsplash) ID() result.Source { return result.SourceUnsplash }

type unsplashResponse struct {
	Results []struct {
		ID             string `json:"id"`
		Description    string `json:"description"`
		AltDescription string `json:"alt_description"`
		CreatedAt      string `json:"created_at"`
		Width          int    `json:"width"`
		Height         int    `json:"height"`
		User           struct {
			Name string `json:"name"`
		} `json:"user"`
		URLs struct {
			Small   string `json:"small"`
			Regular string `json:"regular"`
		} `json:"urls"`
		Links struct {
			HTML string `json:"html"`
		} `json:"links"`
	} `json:"results"`
}

func (u *Unsplash) Search(ctx context.Context, req Request) (out Outcome) {
	defer guard(u.ID(), &out)
	filters := req.Filters.Normalized()
	key, demo := keyOrDemo(u.key)

	params := url.Values{}
	params.Set("query", req.Query)
	params.Set("per_page", strconv.Itoa(u.limit))
	params.Set("page", strconv.Itoa(filters.Page))
	params.Set("client_id", key)
	if filters.Sort == result.SortDate {
		params.Set("order_by", "latest")
	}
	c := call{source: u.ID(), endpoint: u.endpoint, params: params, secret: []string{"client_id"}}

	out = fetch(ctx, u.fetcher, c, func(_ context.Context, resp *unsplashResponse) ([]result.SearchResult, error) {
		results := make([]result.SearchResult, 0, len(resp.Results))
		for _, p := range resp.Results {
			if p.ID == "" || p.Links.HTML == "" {
				continue
			}
			title := result.OrDefault(p.AltDescription, p.Description)
			results = append(results, result.SearchResult{
				ID:          p.ID,
				Title:       result.OrDefault(title, result.UntitledPlaceholder),
				Description: p.Description,
				Author:      p.User.Name,
				Date:        p.CreatedAt,
				Type:        result.TypeImage,
				Source:      result.SourceUnsplash,
				URL:         p.Links.HTML,
				Thumbnail:   result.Thumb(p.URLs.Small),
				FullImage:   p.URLs.Regular,
				Width:       p.Width,
				Height:      p.Height,
			})
		}
		return results, nil
	})
	out = withConfigFailure(out, demo)
	u.fetcher.report(out, c)
	return out
}
