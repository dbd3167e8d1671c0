package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrapeflow/webscrape/internal/config"
	"github.com/scrapeflow/webscrape/internal/engine"
	"github.com/scrapeflow/webscrape/internal/observability"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webscrape",
		Short: "webscrape — configuration-driven web data extraction engine",
		Long: `webscrape runs declarative JobConfig files against either a paginated
site or a fixed list of URLs, extracting structured records via CSS,
XPath, JSON-path, or regex selectors and writing them to a sink
(JSONL, SQLite, Postgres, or MongoDB).`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "ambient config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCmd creates the "run" subcommand: execute one JobConfig.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [job.json]",
		Short: "Run a job config file to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
	return cmd
}

func runJob(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load ambient config: %w", err)
	}

	job, err := config.LoadJob(args[0])
	if err != nil {
		return fmt.Errorf("load job config: %w", err)
	}
	config.ApplyDefaults(job, cfg.Defaults)

	if err := config.ValidateJob(job); err != nil {
		return fmt.Errorf("invalid job config: %w", err)
	}

	logger.Info("starting run", "job", job.Name, "mode", job.Mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := engine.New(ctx, cfg, job, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics(eng, logger)
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("metrics server failed to start", "error", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
		cancel()
	}()

	start := time.Now()
	if err := eng.Run(ctx); err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	elapsed := time.Since(start)

	snap := eng.Stats()
	fmt.Printf("\nrun complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  success: %d   errors: %d   blocked: %d   entries: %d\n",
		snap.Success, snap.Errors, snap.Blocked, snap.Entries)
	fmt.Printf("  throughput: %.2f records/sec\n", snap.PerSecond)
	if len(snap.FailedURLs) > 0 {
		fmt.Printf("  failed urls (%d), first 5 shown (rest logged at debug level):\n", len(snap.FailedURLs))
		shown := snap.FailedURLs
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, u := range shown {
			fmt.Printf("    %s\n", u)
		}
		for _, u := range snap.FailedURLs {
			logger.Debug("failed url", "url", u)
		}
	}

	return nil
}

// versionCmd prints the build version.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("webscrape %s\n", config.Version)
		},
	}
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
