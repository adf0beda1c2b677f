package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FranksOps/quarry/internal/app"
	"github.com/FranksOps/quarry/internal/config"
)

type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "quarry",
		Short:         "Search archives, encyclopedias, libraries and photo sites at once",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", "", "dotenv file to load (default .env)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newSearchCmd(g),
		newHistoryCmd(g),
		newFavoritesCmd(g),
		newSourcesCmd(g),
	)
	return root
}

// load reads configuration and applies command line overrides.
func (g *globalFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath, g.envFile)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// open loads configuration and wires the application.
func (g *globalFlags) open(ctx context.Context, opts app.Options) (*app.App, error) {
	cfg, logger, err := g.load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger, opts)
}

func newLogger(c config.Log) (*slog.Logger, error) {
	level, err := config.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", c.Format)
}
