package result

import (
	"fmt"
	"strings"
)

// Sort selects how a provider orders its results.
type Sort string

const (
	SortRelevance Sort = "relevance"
	SortDate      Sort = "date"
	SortPopular   Sort = "popular"
)

// ParseSort validates a sort mode. Empty input maps to SortRelevance.
func ParseSort(s string) (Sort, error) {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortRelevance:
		return SortRelevance, nil
	case SortDate:
		return SortDate, nil
	case SortPopular:
		return SortPopular, nil
	}
	return "", fmt.Errorf("unknown sort %q", s)
}

// ContentAll disables content-type filtering.
const ContentAll = "all"

// Filters narrows a query. Not every provider honours every field.
type Filters struct {
	ContentType string `json:"contentType"`
	Sort        Sort   `json:"sort"`
	Lang        string `json:"lang"`
	DateFrom    string `json:"dateFrom"`
	DateTo      string `json:"dateTo"`
	Page        int    `json:"page"`
}

// Normalized returns a copy with defaults applied: content type "all",
// relevance sort and page 1.
func (f Filters) Normalized() Filters {
	if strings.TrimSpace(f.ContentType) == "" {
		f.ContentType = ContentAll
	}
	if f.Sort == "" {
		f.Sort = SortRelevance
	}
	if f.Page < 1 {
		f.Page = 1
	}
	f.Lang = strings.TrimSpace(f.Lang)
	f.DateFrom = strings.TrimSpace(f.DateFrom)
	f.DateTo = strings.TrimSpace(f.DateTo)
	return f
}

// WithPage returns a copy of f targeting another page.
func (f Filters) WithPage(page int) Filters {
	f.Page = page
	return f.Normalized()
}
