package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FranksOps/quarry/internal/app"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var clearAll bool
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent searches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			if clearAll {
				return a.Library.ClearHistory(ctx)
			}
			entries := a.Library.History(ctx)
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "> no history")
				return nil
			}
			for i, h := range entries {
				if limit > 0 && i >= limit {
					break
				}
				fmt.Fprintf(out, "%s  %s\n", h.SearchedAt.Local().Format("2006-01-02 15:04"), h.Query)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete the search history")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries to show (0 = all)")
	return cmd
}
