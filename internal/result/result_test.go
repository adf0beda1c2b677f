package result

import (
	"encoding/json"
	"testing"
)

func TestText_Unmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		first string
		join  string
	}{
		{"scalar", `"A"`, "A", "A"},
		{"array", `["A","B"]`, "A", "A, B"},
		{"null", `null`, "", ""},
		{"number", `1999`, "1999", "1999"},
		{"mixed array", `["X", null, 2]`, "X", "X, 2"},
		{"empty array", `[]`, "", ""},
		{"blank first", `["", "Y"]`, "", "Y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txt Text
			if err := json.Unmarshal([]byte(tt.input), &txt); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := txt.First(); got != tt.first {
				t.Errorf("First() = %q, want %q", got, tt.first)
			}
			if got := txt.Join(); got != tt.join {
				t.Errorf("Join() = %q, want %q", got, tt.join)
			}
		})
	}
}

func TestText_InStruct(t *testing.T) {
	var doc struct {
		Title   Text `json:"title"`
		Creator Text `json:"creator"`
	}
	if err := json.Unmarshal([]byte(`{"title":["A","B"],"creator":["X","Y"]}`), &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title.First() != "A" {
		t.Errorf("expected title A, got %q", doc.Title.First())
	}
	if doc.Creator.Join() != "X, Y" {
		t.Errorf("expected author 'X, Y', got %q", doc.Creator.Join())
	}
}

func TestText_BlankFirstFallsBackToPlaceholder(t *testing.T) {
	var doc struct {
		Title Text `json:"title"`
	}
	if err := json.Unmarshal([]byte(`{"title":["", "Second"]}`), &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := OrDefault(doc.Title.First(), UntitledPlaceholder); got != UntitledPlaceholder {
		t.Errorf("expected %q for a blank first title, got %q", UntitledPlaceholder, got)
	}
}

func TestNumber(t *testing.T) {
	var v struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":42,"b":"17","c":null}`), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.A.String() != "42" || v.A.Int() != 42 {
		t.Errorf("unexpected a: %q", v.A)
	}
	if v.B.Int() != 17 {
		t.Errorf("unexpected b: %q", v.B)
	}
	if v.C != "" || v.C.Int() != 0 {
		t.Errorf("expected empty c, got %q", v.C)
	}
}

func TestStripHTML(t *testing.T) {
	tests := map[string]string{
		`<span class="searchmatch">Cats</span> are small`: "Cats are small",
		`plain text`:            "plain text",
		`Tom &amp; Jerry`:       "Tom & Jerry",
		``:                      "",
		`<b>bold</b> <i>it</i>`: "bold it",
	}
	for in, want := range tests {
		if got := StripHTML(in); got != want {
			t.Errorf("StripHTML(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestThumb(t *testing.T) {
	if Thumb("") != nil {
		t.Error("expected nil thumbnail for empty URL")
	}
	if Thumb("   ") != nil {
		t.Error("expected nil thumbnail for blank URL")
	}
	th := Thumb("https://img.example/1.jpg")
	if th == nil || *th != "https://img.example/1.jpg" {
		t.Errorf("unexpected thumbnail %v", th)
	}

	r := SearchResult{Thumbnail: th}
	if !r.HasThumbnail() || r.ThumbnailURL() != "https://img.example/1.jpg" {
		t.Errorf("unexpected thumbnail accessors")
	}
}

func TestThumbnail_MarshalsNull(t *testing.T) {
	data, err := json.Marshal(SearchResult{ID: "1", Source: SourceWikipedia})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	v, ok := m["thumbnail"]
	if !ok || v != nil {
		t.Errorf("expected thumbnail null, got %v (present=%v)", v, ok)
	}
	if _, ok := m["fullImage"]; ok {
		t.Errorf("expected fullImage to be omitted")
	}
}

func TestParseSources(t *testing.T) {
	got, err := ParseSources([]string{"Archive", "openlibrary", "archive", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != SourceArchive || got[1] != SourceOpenLibrary {
		t.Errorf("unexpected sources %v", got)
	}

	if _, err := ParseSources([]string{"altavista"}); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestParseSort(t *testing.T) {
	for in, want := range map[string]Sort{"": SortRelevance, "DATE": SortDate, "popular": SortPopular} {
		got, err := ParseSort(in)
		if err != nil || got != want {
			t.Errorf("ParseSort(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseSort("random"); err == nil {
		t.Error("expected error for unknown sort")
	}
}

func TestFilters_Normalized(t *testing.T) {
	f := Filters{Lang: " en "}.Normalized()
	if f.ContentType != ContentAll || f.Sort != SortRelevance || f.Page != 1 || f.Lang != "en" {
		t.Errorf("unexpected defaults: %+v", f)
	}
	if p := f.WithPage(3); p.Page != 3 || f.Page != 1 {
		t.Errorf("WithPage should copy: %+v / %+v", p, f)
	}
}

func TestFilterBySource(t *testing.T) {
	results := []SearchResult{
		{ID: "1", Source: SourceArchive},
		{ID: "2", Source: SourceOpenLibrary},
		{ID: "3", Source: SourceArchive},
	}

	all := FilterBySource(results, TabAll)
	if len(all) != 3 || all[0].ID != "1" || all[2].ID != "3" {
		t.Errorf("expected all results unchanged, got %v", all)
	}

	arch := FilterBySource(results, "archive")
	if len(arch) != 2 || arch[0].ID != "1" || arch[1].ID != "3" {
		t.Errorf("unexpected archive subset %v", arch)
	}

	if none := FilterBySource(results, "flickr"); len(none) != 0 {
		t.Errorf("expected empty subset, got %v", none)
	}
}

func TestTally(t *testing.T) {
	if Tally(nil) != nil {
		t.Error("expected no tabs for an empty set")
	}
	got := Tally([]SearchResult{
		{ID: "1", Source: SourceOpenLibrary},
		{ID: "2", Source: SourceArchive},
		{ID: "3", Source: SourceOpenLibrary},
	})
	want := []TabCount{{TabAll, 3}, {"openlibrary", 2}, {"archive", 1}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tab %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
