package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/quarry/internal/app"
	"github.com/FranksOps/quarry/internal/report"
	"github.com/FranksOps/quarry/internal/result"
)

func newFavoritesCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "Manage saved results",
	}
	cmd.AddCommand(newFavoritesListCmd(g), newFavoritesAddCmd(g), newFavoritesRemoveCmd(g))
	return cmd
}

func newFavoritesListCmd(g *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List favorites, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			favs := a.Library.Favorites(ctx)
			if strings.EqualFold(format, "text") {
				out := cmd.OutOrStdout()
				if len(favs) == 0 {
					fmt.Fprintln(out, "> no favorites")
					return nil
				}
				for _, f := range favs {
					fmt.Fprintf(out, "[%s] %s\n    %s\n", strings.ToUpper(string(f.Result.Source)), f.Result.Title, f.Result.URL)
				}
				return nil
			}

			results := make([]result.SearchResult, len(favs))
			for i, f := range favs {
				results[i] = f.Result
			}
			return report.Write(cmd.OutOrStdout(), format, report.Summary{
				Query:   "favorites",
				Page:    1,
				Tab:     result.TabAll,
				Tabs:    result.Tally(results),
				Results: results,
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, html, csv")
	return cmd
}

func newFavoritesAddCmd(g *globalFlags) *cobra.Command {
	var r result.SearchResult
	var src, thumb string
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Save a result by its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r.URL = args[0]
			if r.ID == "" {
				r.ID = r.URL
			}
			r.Title = result.OrDefault(r.Title, result.UntitledPlaceholder)
			r.Thumbnail = result.Thumb(thumb)
			if src != "" {
				id, err := result.ParseSource(src)
				if err != nil {
					return err
				}
				r.Source = id
			}

			a, err := g.open(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			added, err := a.Library.AddFavorite(ctx, r)
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintln(cmd.OutOrStdout(), "already a favorite:", r.URL)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "added:", r.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&r.Title, "title", "", "title")
	cmd.Flags().StringVar(&r.ID, "id", "", "provider id (default: the url)")
	cmd.Flags().StringVar(&r.Author, "author", "", "author")
	cmd.Flags().StringVar(&r.Type, "type", "", "media type")
	cmd.Flags().StringVar(&src, "source", "", "source id")
	cmd.Flags().StringVar(&thumb, "thumbnail", "", "thumbnail url")
	return cmd
}

func newFavoritesRemoveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <url>",
		Aliases: []string{"rm"},
		Short:   "Remove a favorite by its URL",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.Library.RemoveFavorite(ctx, args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("not a favorite: %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "removed:", args[0])
			return nil
		},
	}
}
