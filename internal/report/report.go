// Package report renders an accumulated result set for the terminal, for
// other programs (JSON, CSV) and as a standalone HTML page.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/FranksOps/quarry/internal/aggregator"
	"github.com/FranksOps/quarry/internal/analyzer"
	"github.com/FranksOps/quarry/internal/result"
)

// NoResultsMessage is shown when the accumulated set is empty. An empty set
// is a valid outcome, not an error.
const NoResultsMessage = "No results found. Modify the query or filters."

// Summary is the renderable view of a session.
type Summary struct {
	Query       string                `json:"query"`
	Page        int                   `json:"page"`
	Tab         string                `json:"tab"`
	Tabs        []result.TabCount     `json:"tabs"`
	Results     []result.SearchResult `json:"results"`
	Failures    []aggregator.Failure  `json:"failures,omitempty"`
	More        bool                  `json:"more"`
	GeneratedAt time.Time             `json:"generatedAt"`
}

// Empty reports whether there is nothing to show.
func (s Summary) Empty() bool { return len(s.Results) == 0 }

// GenerateSummary builds a Summary from a session snapshot and the failures
// of the most recent update.
func GenerateSummary(st aggregator.State, failures []aggregator.Failure) Summary {
	results := st.Results
	if results == nil {
		results = []result.SearchResult{}
	}
	tab := st.Tab
	if tab == "" {
		tab = result.TabAll
	}
	return Summary{
		Query:       st.Query,
		Page:        st.Page,
		Tab:         tab,
		Tabs:        st.Tabs,
		Results:     results,
		Failures:    failures,
		More:        st.More,
		GeneratedAt: time.Now().UTC(),
	}
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}

var funcs = template.FuncMap{
	"inc":      func(i int) int { return i + 1 },
	"upper":    strings.ToUpper,
	"truncate": truncate,
}

const textTmpl = `Query: {{.Query}}  (page {{.Page}})
{{- if .Empty}}

> {{noResults}}
{{- else}}
Tabs: {{range $i, $t := .Tabs}}{{if $i}} {{end}}[{{upper $t.Tab}}] ({{$t.Count}}){{if eq $t.Tab $.Tab}}*{{end}}{{end}}
{{range $i, $r := .Results}}
{{inc $i}}. [{{upper (print $r.Source)}}] {{$r.Title}}
{{- if $r.Author}}
   by {{$r.Author}}{{if $r.Date}} ({{$r.Date}}){{end}}
{{- else if $r.Date}}
   {{$r.Date}}
{{- end}}
{{- if $r.Description}}
   {{describe $r.Description 160}}
{{- end}}
   {{$r.URL}}
{{- end}}
{{- if .More}}

More results available: use --page {{inc .Page}}.
{{- end}}
{{- end}}
{{- if .Failures}}

Unavailable sources:
{{- range .Failures}}
  {{.Source}}: {{.Kind}}
{{- end}}
{{- end}}
`

// WriteText writes a human-readable listing to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	t, err := template.New("textReport").
		Funcs(funcs).
		Funcs(template.FuncMap{
			"noResults": func() string { return NoResultsMessage },
			"describe":  describer(summary.Query),
		}).
		Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>quarry: {{.Query}}</title>
<style>
  body { font-family: monospace; margin: 40px; background: #0b0b0b; color: #c8c8c8; }
  h1 { border-bottom: 1px solid #333; padding-bottom: 10px; }
  .tab { display: inline-block; padding: 4px 10px; margin: 0 6px 6px 0; border: 1px solid #444; }
  .tab.active { border-color: #0f0; color: #0f0; }
  .card { display: flex; gap: 16px; padding: 12px 0; border-bottom: 1px solid #222; }
  .card img { width: 120px; height: auto; object-fit: cover; }
  .meta { color: #888; font-size: 12px; }
  .empty { padding: 40px; text-align: center; color: #888; }
  .failures { margin-top: 20px; color: #b55; font-size: 12px; }
  a { color: #6cf; }
</style>
</head>
<body>
  <h1>{{.Query}}</h1>
  {{- if .Empty}}
  <div class="empty">&gt; {{noResults}}</div>
  {{- else}}
  <div class="tabs">
    {{- range .Tabs}}
    <span class="tab{{if eq .Tab $.Tab}} active{{end}}">[{{upper .Tab}}] ({{.Count}})</span>
    {{- end}}
  </div>
  {{- range $i, $r := .Results}}
  <div class="card">
    {{- if $r.Thumbnail}}
    <img src="{{$r.ThumbnailURL}}" alt="" loading="lazy">
    {{- end}}
    <div>
      <div><a href="{{$r.URL}}">{{$r.Title}}</a></div>
      <div class="meta">{{$r.Source}} · {{$r.Type}}{{if $r.Author}} · {{$r.Author}}{{end}}{{if $r.Date}} · {{$r.Date}}{{end}}</div>
      {{- if $r.Description}}
      <p>{{describe $r.Description 300}}</p>
      {{- end}}
    </div>
  </div>
  {{- end}}
  {{- end}}
  {{- if .Failures}}
  <div class="failures">Unavailable: {{range $i, $f := .Failures}}{{if $i}}, {{end}}{{$f.Source}} ({{$f.Kind}}){{end}}</div>
  {{- end}}
  <p class="meta">Generated {{.GeneratedAt.Format "2006-01-02 15:04:05"}} UTC</p>
</body>
</html>
`

// WriteHTML writes a standalone HTML page. Provider text is escaped.
func WriteHTML(w io.Writer, summary Summary) error {
	t, err := htmltemplate.New("htmlReport").
		Funcs(htmltemplate.FuncMap(funcs)).
		Funcs(htmltemplate.FuncMap{
			"noResults": func() string { return NoResultsMessage },
			"describe":  describer(summary.Query),
		}).
		Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

var csvHeader = []string{"source", "id", "title", "author", "date", "type", "url", "thumbnail", "description"}

// WriteCSV writes one row per result with a header row. An empty set yields
// the header only.
func WriteCSV(w io.Writer, summary Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range summary.Results {
		row := []string{
			string(r.Source),
			r.ID,
			r.Title,
			r.Author,
			r.Date,
			r.Type,
			r.URL,
			r.ThumbnailURL(),
			r.Description,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Write renders summary in the named format: text, json, html or csv.
func Write(w io.Writer, format string, summary Summary) error {
	switch strings.ToLower(format) {
	case "", "text":
		return WriteText(w, summary)
	case "json":
		return WriteJSON(w, summary)
	case "html":
		return WriteHTML(w, summary)
	case "csv":
		return WriteCSV(w, summary)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// describer shortens a description to n runes, preferring the first
// sentence that mentions a query term.
func describer(query string) func(string, int) string {
	terms := analyzer.Terms(query)
	return func(desc string, n int) string {
		if ex := analyzer.Excerpt(desc, terms); ex != "" {
			return truncate(ex, n)
		}
		return truncate(desc, n)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
