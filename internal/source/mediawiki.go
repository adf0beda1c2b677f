package source

import (
	"net/url"
	"strings"

	"github.com/FranksOps/quarry/internal/result"
)

// mediawikiSearch is the list=search response shared by Wikipedia and
// Wikimedia Commons.
type mediawikiSearch struct {
	Error *mediawikiError `json:"error"`
	Query struct {
		Search []mediawikiHit `json:"search"`
	} `json:"query"`
}

type mediawikiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

// check turns an in-body API error into a status failure.
func (e *mediawikiError) check() error {
	if e == nil {
		return nil
	}
	return fail(FailureStatus, "mediawiki error %s: %s", e.Code, e.Info)
}

type mediawikiHit struct {
	PageID    result.Number `json:"pageid"`
	Title     string        `json:"title"`
	Snippet   string        `json:"snippet"`
	Timestamp string        `json:"timestamp"`
}

func searchParams(query string, namespace string, limit string, f result.Filters) url.Values {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", limit)
	params.Set("format", "json")
	params.Set("utf8", "1")
	if namespace != "" {
		params.Set("srnamespace", namespace)
	}
	if f.Sort == result.SortDate {
		params.Set("srsort", "last_edit_desc")
	}
	return params
}

// wikiPath returns the article path segment for a page title.
func wikiPath(title string) string {
	return url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}
