package result

import (
	"fmt"
	"strings"
)

// Source identifies the adapter that produced a SearchResult.
type Source string

const (
	SourceArchive     Source = "archive"
	SourceWikipedia   Source = "wikipedia"
	SourceUnsplash    Source = "unsplash"
	SourceOpenLibrary Source = "openlibrary"
	SourceWikimedia   Source = "wikimedia"
	SourcePixabay     Source = "pixabay"
	SourcePexels      Source = "pexels"
	SourceFlickr      Source = "flickr"
)

// AllSources lists every known source in its canonical invocation order.
var AllSources = []Source{
	SourceArchive,
	SourceWikipedia,
	SourceUnsplash,
	SourceOpenLibrary,
	SourceWikimedia,
	SourcePixabay,
	SourcePexels,
	SourceFlickr,
}

// TabAll is the virtual tab that shows every accumulated result.
const TabAll = "all"

// ParseSource validates a source id.
func ParseSource(s string) (Source, error) {
	id := Source(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSources {
		if id == known {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// ParseSources validates a list of source ids, dropping duplicates while
// keeping the order in which they were first named.
func ParseSources(ids []string) ([]Source, error) {
	seen := make(map[Source]struct{}, len(ids))
	out := make([]Source, 0, len(ids))
	for _, raw := range ids {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		id, err := ParseSource(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// Media classifications used as per-provider fallbacks.
const (
	TypeTexts   = "texts"
	TypeImage   = "image"
	TypeAudio   = "audio"
	TypeVideo   = "video"
	TypeArticle = "article"
	TypeBook    = "book"
	TypeMedia   = "media"
)

// UntitledPlaceholder is used when a provider omits a title.
const UntitledPlaceholder = "Untitled"

// SearchResult is the common shape every adapter produces.
type SearchResult struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Author      string  `json:"author"`
	Date        string  `json:"date"`
	Type        string  `json:"type"`
	Source      Source  `json:"source"`
	URL         string  `json:"url"`
	Thumbnail   *string `json:"thumbnail"`
	FullImage   string  `json:"fullImage,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
}

// HasThumbnail reports whether a preview image is available.
func (r SearchResult) HasThumbnail() bool {
	return r.Thumbnail != nil
}

// ThumbnailURL returns the preview URL or "".
func (r SearchResult) ThumbnailURL() string {
	if r.Thumbnail == nil {
		return ""
	}
	return *r.Thumbnail
}

// Thumb converts a possibly empty URL into a thumbnail pointer. Empty strings
// become nil so a result never carries an empty thumbnail.
func Thumb(u string) *string {
	u = strings.TrimSpace(u)
	if u == "" {
		return nil
	}
	return &u
}

// OrDefault returns s, or def when s is blank.
func OrDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// FilterBySource returns the subset of results for one tab. TabAll returns
// the input unchanged.
func FilterBySource(results []SearchResult, tab string) []SearchResult {
	if tab == "" || tab == TabAll {
		return results
	}
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if string(r.Source) == tab {
			out = append(out, r)
		}
	}
	return out
}

// TabCount is one tab label: a source id (or TabAll) and its result count.
type TabCount struct {
	Tab   string `json:"tab"`
	Count int    `json:"count"`
}

// Tally counts results per source. TabAll comes first, followed by sources
// in the order they first appear. An empty input yields no tabs.
func Tally(results []SearchResult) []TabCount {
	if len(results) == 0 {
		return nil
	}
	out := []TabCount{{Tab: TabAll, Count: len(results)}}
	index := make(map[Source]int)
	for _, r := range results {
		i, ok := index[r.Source]
		if !ok {
			i = len(out)
			index[r.Source] = i
			out = append(out, TabCount{Tab: string(r.Source)})
		}
		out[i].Count++
	}
	return out
}
