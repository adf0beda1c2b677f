package source

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/FranksOps/quarry/internal/result"
)

const pexelsEndpoint = "https://api.pexels.com/v1/search"

// Pexels searches Pexels photos. The key travels in the Authorization header.
type Pexels struct {
	fetcher  *Fetcher
	endpoint string
	key      string
	perPage  int
}

var _ Adapter = (*Pexels)(nil)

// NewPexels creates the Pexels adapter, falling back to the demo key.
func NewPexels(f *Fetcher, opts Options) *Pexels {
	opts = opts.withDefaults()
	return &Pexels{
		fetcher:  f,
		endpoint: opts.endpoint(result.SourcePexels, pexelsEndpoint),
		key:      opts.Keys.Pexels,
		perPage:  opts.PageSize,
	}
}

func (p *Pexels) ID() result.Source { return result.SourcePexels }

type pexelsResponse struct {
	Photos []struct {
		ID           result.Number `json:"id"`
		Width        int           `json:"width"`
		Height       int           `json:"height"`
		URL          string        `json:"url"`
		Photographer string        `json:"photographer"`
		Alt          string        `json:"alt"`
		Src          struct {
			Medium  string `json:"medium"`
			Large2x string `json:"large2x"`
		} `json:"src"`
	} `json:"photos"`
}

func (p *Pexels) Search(ctx context.Context, req Request) (out Outcome) {
	defer guard(p.ID(), &out)
	filters := req.Filters.Normalized()
	key, demo := keyOrDemo(p.key)

	params := url.Values{}
	params.Set("query", req.Query)
	params.Set("per_page", strconv.Itoa(p.perPage))
	params.Set("page", strconv.Itoa(filters.Page))
	if filters.Lang != "" {
		params.Set("locale", filters.Lang)
	}
	header := http.Header{}
	header.Set("Authorization", key)
	c := call{source: p.ID(), endpoint: p.endpoint, params: params, header: header}

	out = fetch(ctx, p.fetcher, c, func(_ context.Context, resp *pexelsResponse) ([]result.SearchResult, error) {
		results := make([]result.SearchResult, 0, len(resp.Photos))
		for _, photo := range resp.Photos {
			if photo.ID == "" || photo.URL == "" {
				continue
			}
			desc := ""
			if photo.Photographer != "" {
				desc = "By " + photo.Photographer
			}
			results = append(results, result.SearchResult{
				ID:          photo.ID.String(),
				Title:       result.OrDefault(photo.Alt, result.UntitledPlaceholder),
				Description: desc,
				Author:      photo.Photographer,
				Type:        result.TypeImage,
				Source:      result.SourcePexels,
				URL:         photo.URL,
				Thumbnail:   result.Thumb(photo.Src.Medium),
				FullImage:   photo.Src.Large2x,
				Width:       photo.Width,
				Height:      photo.Height,
			})
		}
		return results, nil
	})
	out = withConfigFailure(out, demo)
	p.fetcher.report(out, c)
	return out
}
