package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/FranksOps/quarry/internal/result"
)

const pixabayEndpoint = "https://pixabay.com/api/"

// Pixabay searches Pixabay photos.
type Pixabay struct {
	fetcher  *Fetcher
	endpoint string
	key      string
	perPage  int
}

var _ Adapter = (*Pixabay)(nil)

// NewPixabay creates the Pixabay adapter.
func NewPixabay(f *Fetcher, opts Options) *Pixabay {
	opts = opts.withDefaults()
	return &Pixabay{
		fetcher:  f,
		endpoint: opts.endpoint(result.SourcePixabay, pixabayEndpoint),
		key:      opts.Keys.Pixabay,
		perPage:  opts.PageSize,
	}
}

func (p *Pixabay) ID() result.Source { return result.SourcePixabay }

type pixabayResponse struct {
	Hits []struct {
		ID            result.Number `json:"id"`
		PageURL       string        `json:"pageURL"`
		Tags          string        `json:"tags"`
		WebformatURL  string        `json:"webformatURL"`
		LargeImageURL string        `json:"largeImageURL"`
		ImageWidth    int           `json:"imageWidth"`
		ImageHeight   int           `json:"imageHeight"`
		Views         int           `json:"views"`
		Likes         int           `json:"likes"`
		User          string        `json:"user"`
	} `json:"hits"`
}

func (p *Pixabay) Search(ctx context.Context, req Request) (out Outcome) {
	defer guard(p.ID(), &out)
	filters := req.Filters.Normalized()
	key, demo := keyOrDemo(p.key)

	params := url.Values{}
	params.Set("key", key)
	params.Set("q", req.Query)
	params.Set("image_type", "photo")
	params.Set("per_page", strconv.Itoa(p.perPage))
	params.Set("page", strconv.Itoa(filters.Page))
	switch filters.Sort {
	case result.SortDate:
		params.Set("order", "latest")
	case result.SortPopular:
		params.Set("order", "popular")
	}
	if filters.Lang != "" {
		params.Set("lang", filters.Lang)
	}
	c := call{source: p.ID(), endpoint: p.endpoint, params: params, secret: []string{"key"}}

	out = fetch(ctx, p.fetcher, c, func(_ context.Context, resp *pixabayResponse) ([]result.SearchResult, error) {
		results := make([]result.SearchResult, 0, len(resp.Hits))
		for _, hit := range resp.Hits {
			if hit.ID == "" || hit.PageURL == "" {
				continue
			}
			results = append(results, result.SearchResult{
				ID:          hit.ID.String(),
				Title:       result.OrDefault(hit.Tags, result.UntitledPlaceholder),
				Description: fmt.Sprintf("%d likes • %d views", hit.Likes, hit.Views),
				Author:      hit.User,
				Type:        result.TypeImage,
				Source:      result.SourcePixabay,
				URL:         hit.PageURL,
				Thumbnail:   result.Thumb(hit.WebformatURL),
				FullImage:   hit.LargeImageURL,
				Width:       hit.ImageWidth,
				Height:      hit.ImageHeight,
			})
		}
		return results, nil
	})
	out = withConfigFailure(out, demo)
	p.fetcher.report(out, c)
	return out
}
