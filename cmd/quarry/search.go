package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/quarry/internal/aggregator"
	"github.com/FranksOps/quarry/internal/app"
	"github.com/FranksOps/quarry/internal/report"
	"github.com/FranksOps/quarry/internal/result"
)

type searchFlags struct {
	sources     []string
	contentType string
	sort        string
	lang        string
	dateFrom    string
	dateTo      string
	pages       int
	tab         string
	format      string
	output      string
}

func newSearchCmd(g *globalFlags) *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the selected sources and print the merged results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, g, f, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringSliceVarP(&f.sources, "sources", "s", nil, "comma separated sources (default: configured or all)")
	cmd.Flags().StringVarP(&f.contentType, "type", "t", result.ContentAll, "content type: all, texts, image, audio, video, article")
	cmd.Flags().StringVar(&f.sort, "sort", string(result.SortRelevance), "sort: relevance, date, popular")
	cmd.Flags().StringVar(&f.lang, "lang", "", "language code")
	cmd.Flags().StringVar(&f.dateFrom, "from", "", "earliest date (inclusive)")
	cmd.Flags().StringVar(&f.dateTo, "to", "", "latest date (inclusive)")
	cmd.Flags().IntVarP(&f.pages, "page", "p", 1, "load pages 1..N and accumulate them")
	cmd.Flags().StringVar(&f.tab, "tab", result.TabAll, "show only one source's results")
	cmd.Flags().StringVarP(&f.format, "format", "f", "text", "output format: text, json, html, csv")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write output to a file instead of stdout")
	return cmd
}

func runSearch(cmd *cobra.Command, g *globalFlags, f *searchFlags, query string) error {
	ctx := cmd.Context()
	sortMode, err := result.ParseSort(f.sort)
	if err != nil {
		return err
	}
	if f.pages < 1 {
		return fmt.Errorf("--page must be at least 1")
	}

	a, err := g.open(ctx, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	sources, err := a.Sources(f.sources)
	if err != nil {
		return err
	}

	session := a.NewSession()
	if err := session.SetTab(f.tab); err != nil {
		return err
	}

	filters := result.Filters{
		ContentType: f.contentType,
		Sort:        sortMode,
		Lang:        f.lang,
		DateFrom:    f.dateFrom,
		DateTo:      f.dateTo,
	}
	var failures []aggregator.Failure
	update, err := session.Search(ctx, query, sources, filters)
	if err != nil {
		if errors.Is(err, aggregator.ErrEmptyQuery) {
			return fmt.Errorf("enter a search query")
		}
		return err
	}
	failures = append(failures, update.Failures...)
	for page := 2; page <= f.pages && update.More; page++ {
		if update, err = session.LoadMore(ctx); err != nil {
			return err
		}
		failures = append(failures, update.Failures...)
	}

	var w io.Writer = cmd.OutOrStdout()
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}
	return report.Write(w, f.format, report.GenerateSummary(session.Snapshot(), dedupeFailures(failures)))
}

// dedupeFailures keeps the first failure per source across pages.
func dedupeFailures(in []aggregator.Failure) []aggregator.Failure {
	seen := make(map[result.Source]bool, len(in))
	var out []aggregator.Failure
	for _, f := range in {
		if seen[f.Source] {
			continue
		}
		seen[f.Source] = true
		out = append(out, f)
	}
	return out
}
