// SPDX-License-Identifier: MIT

// Command aircheck records the radio streams of a country for a fixed
// duration:
//
//	aircheck <country> <directory> <duration-seconds>
//
// Subcommands:
//
//	history  list archived recording runs
//	version  print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonband/aircheck/internal/cache"
	"github.com/tonband/aircheck/internal/catalog"
	"github.com/tonband/aircheck/internal/config"
	"github.com/tonband/aircheck/internal/index"
	xglog "github.com/tonband/aircheck/internal/log"
	"github.com/tonband/aircheck/internal/ratelimit"
	"github.com/tonband/aircheck/internal/record"
	"github.com/tonband/aircheck/internal/session"
	"github.com/tonband/aircheck/internal/status"
	"github.com/tonband/aircheck/internal/telemetry"
	"github.com/tonband/aircheck/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "aircheck: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	logLevel   string
	workers    int
	catalogURL string
	statusAddr string
	indexPath  string
	cacheDir   string
	manifest   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "aircheck <country> <directory> <duration-seconds>",
		Short: "Record the radio streams of a country for a fixed duration",
		Long: `aircheck resolves every radio stream the catalog lists for a country
and records all of them in parallel for the given number of seconds.
Each stream ends up as an MP3 file in the output directory.`,
		Args:          cobra.ExactArgs(3),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to config file (YAML)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "worker pool cap")
	cmd.Flags().StringVar(&flags.catalogURL, "catalog-url", "", "catalog API base URL")
	cmd.Flags().StringVar(&flags.statusAddr, "status-addr", "", "listen address for the status server (empty disables)")
	cmd.Flags().StringVar(&flags.indexPath, "index", "", "path to the run index database (empty disables)")
	cmd.Flags().StringVar(&flags.cacheDir, "cache-dir", "", "directory for the catalog response cache (empty disables)")
	cmd.Flags().BoolVar(&flags.manifest, "manifest", true, "write a run manifest into the output directory")

	cmd.AddCommand(
		newHistoryCmd(),
		newVersionCmd(),
	)

	return cmd
}

func runRecord(cmd *cobra.Command, args []string, flags *rootFlags) error {
	country := strings.TrimSpace(args[0])
	outputDir := args[1]
	seconds, err := strconv.Atoi(args[2])
	if err != nil || seconds <= 0 {
		return fmt.Errorf("duration must be a positive whole number of seconds, got %q", args[2])
	}

	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "aircheck",
	})
	logger := xglog.WithComponent("cli")

	loader := config.NewLoader(flags.configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg.Country = country
	cfg.OutputDir = outputDir
	cfg.Duration = time.Duration(seconds) * time.Second
	applyFlagOverrides(cmd, &cfg, flags)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := xglog.SetLevel(cfg.LogLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "aircheck",
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		Protocol:       cfg.Telemetry.Protocol,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	// Hot reload covers the log level and logs other drift; the running
	// session keeps the settings it started with.
	holder := config.NewHolder(cfg, loader, flags.configPath)
	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Msg("config watcher not started")
	}
	defer holder.Stop()

	catalogCache := cache.NewNoop()
	if cfg.CacheDir != "" {
		c, err := cache.Open(cfg.CacheDir)
		if err != nil {
			logger.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("catalog cache disabled")
		} else {
			catalogCache = c
		}
	}
	defer func() { _ = catalogCache.Close() }()

	var archiver session.Archiver
	if cfg.IndexPath != "" {
		store, err := index.Open(cfg.IndexPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.IndexPath).Msg("run index disabled")
		} else {
			defer func() { _ = store.Close() }()
			archiver = store
		}
	}

	cat := catalog.New(cfg.CatalogURL, catalog.Options{
		Timeout:  cfg.CatalogTimeout,
		Limiter:  ratelimit.New(cfg.RateLimit, cfg.RateBurst),
		Cache:    catalogCache,
		CacheTTL: cfg.CacheTTL,
	})

	recorder := record.NewRecorder(cfg.OutputDir, record.Options{
		ChunkSize: cfg.ChunkSize,
	})

	sess, err := session.New(cfg, session.Options{
		Resolver: cat,
		Recorder: recorder,
		Index:    archiver,
	})
	if err != nil {
		return err
	}

	srv := status.New(status.Options{
		Addr:     cfg.StatusAddr,
		Version:  version.Version,
		Progress: sess.Progress,
	})

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	var report *session.Report
	g.Go(func() error {
		// Ends the status server once the session is done.
		defer cancelRun()
		r, err := sess.Run(gctx)
		report = r
		return err
	})

	runErr := g.Wait()
	if report != nil {
		printSummary(cmd, report)
	}
	return runErr
}

// applyFlagOverrides lets explicit command line flags win over file and
// environment settings.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, flags *rootFlags) {
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if cmd.Flags().Changed("workers") {
		cfg.MaxWorkers = flags.workers
	}
	if cmd.Flags().Changed("catalog-url") {
		cfg.CatalogURL = flags.catalogURL
	}
	if cmd.Flags().Changed("status-addr") {
		cfg.StatusAddr = flags.statusAddr
	}
	if cmd.Flags().Changed("index") {
		cfg.IndexPath = flags.indexPath
	}
	if cmd.Flags().Changed("cache-dir") {
		cfg.CacheDir = flags.cacheDir
	}
	if cmd.Flags().Changed("manifest") {
		cfg.Manifest = flags.manifest
	}
}

func printSummary(cmd *cobra.Command, report *session.Report) {
	cmd.Printf("run %s: %d of %d streams recorded, %d failed\n",
		report.RunID, report.Succeeded(), len(report.Outcomes), report.Failed())
	cmd.Printf("wrote %d bytes to %s in %s\n",
		report.TotalBytes(), report.OutputDir,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}
