package source

import (
	"context"
	"net/url"
	"strconv"

	"github.com/FranksOps/quarry/internal/result"
)

const (
	flickrEndpoint = "https://api.flickr.com/services/rest/"
	flickrPhotos   = "https://www.flickr.com/photos/"
	// flickrInvalidKey is the stat:fail code for a rejected api_key.
	flickrInvalidKey = 100
)

// Flickr searches public Flickr photos.
type Flickr struct {
	fetcher  *Fetcher
	endpoint string
	key      string
	perPage  int
}

var _ Adapter = (*Flickr)(nil)

// NewFlickr creates the Flickr adapter. Without a key in opts it searches
// with the demo key.
func NewFlickr(f *Fetcher, opts Options) *Flickr {
	opts = opts.withDefaults()
	return &Flickr{
		fetcher:  f,
		endpoint: opts.endpoint(result.SourceFlickr, flickrEndpoint),
		key:      opts.Keys.Flickr,
		perPage:  opts.PageSize,
	}
}

func (f *Flickr) ID() result.Source { return result.SourceFlickr }

// flickrResponse reports API errors in a 200 body with stat "fail".
type flickrResponse struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Photos  struct {
		Photo []struct {
			ID        string        `json:"id"`
			Owner     string        `json:"owner"`
			Title     string        `json:"title"`
			OwnerName string        `json:"ownername"`
			DateTaken string        `json:"datetaken"`
			URLM      string        `json:"url_m"`
			URLL      string        `json:"url_l"`
			WidthL    result.Number `json:"width_l"`
			HeightL   result.Number `json:"height_l"`
		} `json:"photo"`
	} `json:"photos"`
}

func (f *Flickr) Search(ctx context.Context, req Request) (out Outcome) {
	defer guard(f.ID(), &out)
	filters := req.Filters.Normalized()
	key, demo := keyOrDemo(f.key)

	params := url.Values{}
	params.Set("method", "flickr.photos.search")
	params.Set("api_key", key)
	params.Set("text", req.Query)
	params.Set("per_page", strconv.Itoa(f.perPage))
	params.Set("page", strconv.Itoa(filters.Page))
	params.Set("format", "json")
	params.Set("nojsoncallback", "1")
	params.Set("extras", "owner_name,date_taken,url_m,url_l")
	switch filters.Sort {
	case result.SortDate:
		params.Set("sort", "date-posted-desc")
	case result.SortPopular:
		params.Set("sort", "interestingness-desc")
	default:
		params.Set("sort", "relevance")
	}
	if filters.DateFrom != "" {
		params.Set("min_taken_date", filters.DateFrom)
	}
	if filters.DateTo != "" {
		params.Set("max_taken_date", filters.DateTo)
	}
	c := call{source: f.ID(), endpoint: f.endpoint, params: params, secret: []string{"api_key"}}

	out = fetch(ctx, f.fetcher, c, func(_ context.Context, resp *flickrResponse) ([]result.SearchResult, error) {
		if resp.Stat == "fail" {
			kind := FailureStatus
			if demo && resp.Code == flickrInvalidKey {
				kind = FailureConfig
			}
			return nil, fail(kind, "flickr error %d: %s", resp.Code, resp.Message)
		}
		results := make([]result.SearchResult, 0, len(resp.Photos.Photo))
		for _, p := range resp.Photos.Photo {
			if p.ID == "" || p.Owner == "" {
				continue
			}
			results = append(results, result.SearchResult{
				ID:        p.ID,
				Title:     result.OrDefault(p.Title, result.UntitledPlaceholder),
				Author:    p.OwnerName,
				Date:      p.DateTaken,
				Type:      result.TypeImage,
				Source:    result.SourceFlickr,
				URL:       flickrPhotos + url.PathEscape(p.Owner) + "/" + url.PathEscape(p.ID),
				Thumbnail: result.Thumb(p.URLM),
				FullImage: p.URLL,
				Width:     p.WidthL.Int(),
				Height:    p.HeightL.Int(),
			})
		}
		return results, nil
	})
	out = withConfigFailure(out, demo)
	f.fetcher.report(out, c)
	return out
}
