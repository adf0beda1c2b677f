package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FranksOps/quarry/internal/config"
	"github.com/FranksOps/quarry/internal/result"
)

func newSourcesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the available sources and whether their API key is configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tKEY")
			for _, id := range result.AllSources {
				fmt.Fprintf(tw, "%s\t%s\n", id, keyStatus(cfg, id))
			}
			return tw.Flush()
		},
	}
}

func keyStatus(cfg *config.Config, id result.Source) string {
	var key string
	switch id {
	case result.SourceUnsplash:
		key = cfg.Keys.Unsplash
	case result.SourcePixabay:
		key = cfg.Keys.Pixabay
	case result.SourcePexels:
		key = cfg.Keys.Pexels
	case result.SourceFlickr:
		key = cfg.Keys.Flickr
	default:
		return "not required"
	}
	if key == "" {
		return "missing (placeholder key will be rejected)"
	}
	return "configured"
}
