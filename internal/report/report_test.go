package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/FranksOps/quarry/internal/aggregator"
	"github.com/FranksOps/quarry/internal/result"
	"github.com/FranksOps/quarry/internal/source"
)

func sampleState() aggregator.State {
	results := []result.SearchResult{
		{
			ID: "cats-1", Title: "Cats <script>alert(1)</script>", Author: "X, Y", Date: "1999",
			Type: "texts", Source: result.SourceArchive, URL: "https://archive.org/details/cats-1",
			Thumbnail: result.Thumb("https://archive.org/services/img/cats-1"), Description: "Two cats",
		},
		{ID: "/works/OL1W", Title: "Cat's Cradle", Source: result.SourceOpenLibrary, Type: "book", URL: "https://openlibrary.org/works/OL1W"},
	}
	return aggregator.State{
		Query:   "cats",
		Page:    1,
		Tab:     result.TabAll,
		More:    true,
		Results: results,
		Tabs:    result.Tally(results),
	}
}

func TestGenerateSummary(t *testing.T) {
	failures := []aggregator.Failure{{Source: result.SourcePexels, Kind: source.FailureConfig, Err: "no key"}}
	s := GenerateSummary(sampleState(), failures)

	if s.Query != "cats" || len(s.Results) != 2 || len(s.Tabs) != 3 || !s.More {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.Empty() {
		t.Error("expected non-empty summary")
	}
	if len(s.Failures) != 1 || s.GeneratedAt.IsZero() {
		t.Errorf("unexpected failures/time: %+v", s)
	}

	empty := GenerateSummary(aggregator.State{Query: "zzz"}, nil)
	if !empty.Empty() || empty.Results == nil || empty.Tab != result.TabAll {
		t.Errorf("unexpected empty summary: %+v", empty)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	s := GenerateSummary(sampleState(), []aggregator.Failure{{Source: result.SourcePexels, Kind: source.FailureConfig}})
	if err := WriteText(&buf, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Query: cats",
		"[ALL] (2)*",
		"[ARCHIVE] (1)",
		"1. [ARCHIVE] Cats",
		"by X, Y (1999)",
		"2. [OPENLIBRARY] Cat's Cradle",
		"https://openlibrary.org/works/OL1W",
		"--page 2",
		"pexels: config",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected text output to contain %q\n%s", want, out)
		}
	}
}

func TestWriteText_NoResults(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, GenerateSummary(aggregator.State{Query: "zzz", Page: 1}, nil)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, NoResultsMessage) {
		t.Errorf("expected no-results state, got %q", out)
	}
	if strings.Contains(out, "Tabs:") {
		t.Errorf("tabs must be hidden for an empty set")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, GenerateSummary(sampleState(), nil)); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Results []map[string]any  `json:"results"`
		Tabs    []result.TabCount `json:"tabs"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(decoded.Results) != 2 || decoded.Tabs[0].Tab != result.TabAll {
		t.Errorf("unexpected json: %s", buf.String())
	}
	if v, ok := decoded.Results[1]["thumbnail"]; !ok || v != nil {
		t.Errorf("expected null thumbnail, got %v", v)
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, GenerateSummary(sampleState(), nil)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Error("provider text must be escaped")
	}
	if !strings.Contains(out, `<img src="https://archive.org/services/img/cats-1"`) {
		t.Error("expected thumbnail image")
	}
	if strings.Count(out, "<img") != 1 {
		t.Error("results without thumbnail must not render an image")
	}
	if !strings.Contains(out, `class="tab active"`) {
		t.Error("expected the active tab to be marked")
	}

	buf.Reset()
	if err := WriteHTML(&buf, GenerateSummary(aggregator.State{Query: "zzz"}, nil)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `class="empty"`) {
		t.Error("expected the empty state")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, GenerateSummary(sampleState(), nil)); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "source" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if rows[1][3] != "X, Y" || rows[2][7] != "" {
		t.Errorf("unexpected row contents: %v", rows)
	}
}

func TestWrite_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "yaml", Summary{}); err == nil {
		t.Error("expected error for unknown format")
	}
	for _, f := range []string{"", "text", "JSON", "html", "csv"} {
		buf.Reset()
		if err := Write(&buf, f, GenerateSummary(sampleState(), nil)); err != nil {
			t.Errorf("format %q: %v", f, err)
		}
		if buf.Len() == 0 {
			t.Errorf("format %q produced no output", f)
		}
	}
}

func TestWriteText_DescriptionExcerpt(t *testing.T) {
	long := strings.Repeat("Filler about the collection. ", 10) + "A tabby cat naps on the shelf. More filler follows."
	s := Summary{
		Query: "tabby",
		Page:  1,
		Tab:   result.TabAll,
		Results: []result.SearchResult{
			{Title: "Shelf", Source: result.SourceArchive, URL: "https://archive.org/details/x", Description: long},
		},
	}
	s.Tabs = result.Tally(s.Results)

	var buf bytes.Buffer
	if err := WriteText(&buf, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "   A tabby cat naps on the shelf.") {
		t.Errorf("expected matching sentence as description\n%s", buf.String())
	}

	s.Query = "zebra"
	buf.Reset()
	if err := WriteText(&buf, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "   Filler about the collection.") || !strings.Contains(buf.String(), "...") {
		t.Errorf("expected truncated description without a match\n%s", buf.String())
	}
}
