package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/psivak/filmwiki/internal/config"
	"github.com/psivak/filmwiki/internal/pipeline"
)

var (
	cfgFile     string
	verbose     bool
	stages      string
	group       string
	outputType  string
	outputDir   string
	concurrency int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "filmwiki",
		Short: "filmwiki — Indian film metadata harvester",
		Long: `filmwiki harvests structured metadata for Indian films from Wikipedia
categories and Wikidata, then cleans and enriches it into per-group CSV
tables with quality reports.

Features:
  • Checkpointed, resumable multi-stage pipeline
  • Semaphore-bounded concurrent summary fetching
  • Batched SPARQL metadata queries with fair-use pacing
  • CSV, SQLite, and MongoDB export`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(harvestCmd())
	rootCmd.AddCommand(cleanCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// harvestCmd creates the "harvest" subcommand.
func harvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Run the harvest pipeline",
		Long: `Run the harvest pipeline: discover film titles via category traversal,
resolve Wikidata ids, fetch metadata and summaries, and assemble the
cleaned output tables.

Stages with an existing checkpoint artifact are skipped. Use --stages to
run a subset; unselected stages must already be checkpointed.`,
		RunE: runHarvest,
	}

	cmd.Flags().StringVarP(&stages, "stages", "s", "all",
		"comma-separated stages to run: all, "+strings.Join(pipeline.AllStages, ", "))
	cmd.Flags().StringVarP(&group, "group", "g", "", "process only this category group")
	cmd.Flags().StringVarP(&outputType, "format", "f", "", "output sink: csv, sqlite, mongodb")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for CSV files")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "max in-flight summary requests")

	return cmd
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Logging, os.Stderr)

	selected, err := pipeline.ParseStages(strings.Split(stages, ","))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	p, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer p.Close()

	logger.Info("starting harvest",
		"stages", stages,
		"group", group,
		"groups", len(cfg.Sources.TargetGroups),
		"concurrency", cfg.Summaries.Concurrency,
	)

	start := time.Now()
	if err := p.Run(ctx, selected, group); err != nil {
		return err
	}
	logger.Info("harvest complete", "elapsed", time.Since(start))
	return nil
}

// cleanCmd creates the "clean" subcommand (clean-only mode).
func cleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Re-clean existing output files without scraping",
		Long: `Re-run the cleaning and enrichment stage over already-produced CSV
files, rewriting them in place and regenerating quality reports. No
network calls are made.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.Logging, os.Stderr)

			ctx, cancel := signalContext(logger)
			defer cancel()

			p, err := pipeline.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("build pipeline: %w", err)
			}
			defer p.Close()

			return p.CleanOnly(ctx)
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory containing CSV files")
	return cmd
}

// configCmd creates the "config" subcommand.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})
	return cmd
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("filmwiki %s\n", config.Version)
		},
	}
}

// loadConfig loads config and applies CLI flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if outputType != "" {
		cfg.Storage.Type = outputType
	}
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	if concurrency > 0 {
		cfg.Summaries.Concurrency = concurrency
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. An
// interrupted stage writes no checkpoint and is re-executed next run.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", "signal", sig)
		cancel()
	}()
	return ctx, cancel
}
