package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/auth"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/browser"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/config"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/consent"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/datefilter"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/download"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/locator"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/logging"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/navigation"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/pipeline"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/probe"
	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/report"
)

// NewRootCmd creates the root command, reading the endpoint and the
// credentials from the process environment.
func NewRootCmd() *cobra.Command {
	return newRootCmd(os.Getenv)
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Download unread received bills from AziendaOnWeb",
		Long: `aziendaweb-bills logs in to AziendaOnWeb through a remote Chrome, opens the
list of unread received bills since the first day of the month 30 days ago
and downloads each of them as "PDF elettronico" into the browser's download directory.

The DevTools endpoint and the credentials come from the environment:
  webdriverHost   remote Chrome DevTools address (or --endpoint)
  username        AziendaOnWeb user
  password        AziendaOnWeb password`,
		Version:       appVersion,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRootCmd(cmd, getenv)
		},
	}

	cmd.Flags().String("endpoint", "",
		"Remote Chrome DevTools address (overrides $"+config.EnvEndpoint+")")
	cmd.Flags().String("base-url", config.DefaultBaseURL, "AziendaOnWeb base URL")
	cmd.Flags().String("download", config.DefaultDownloadDir,
		"Download directory on the browser host")
	cmd.Flags().String("locators", "",
		"YAML file overriding the page locators (default: search "+locator.DefaultFile+" in XDG config dirs)")
	cmd.Flags().String("since", "",
		"List bills dated from this day on (YYYY-MM-DD) instead of the first day of the month 30 days ago")
	cmd.Flags().Int("window-width", config.DefaultWindowWidth, "Browser window width")
	cmd.Flags().Int("window-height", config.DefaultWindowHeight, "Browser window height")
	cmd.Flags().String("log-format", "text", "Log format: text or json")
	cmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging")

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runRootCmd fails only when the run cannot start. A run that starts always
// ends with the report, and a halted run is not an error.
func runRootCmd(cmd *cobra.Command, getenv func(string) string) error {
	cfg, since, err := buildConfig(cmd, getenv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	out := cmd.OutOrStdout()
	logger := setupLogger(out, cfg)
	slog.SetDefault(logger)

	tbl, source, err := locator.Resolve(cfg.LocatorsFile)
	if err != nil {
		return fmt.Errorf("locators: %w", err)
	}
	if source != "" {
		logger.Info("using locator file", "path", source)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := report.New()
	stats.SetDownloadDir(cfg.DownloadDir)

	logger.Info("starting bill download",
		"version", appVersion,
		"endpoint", cfg.Endpoint,
		"base_url", cfg.BaseURL,
		"download_dir", cfg.DownloadDir)

	ok, err := pipeline.Execute(ctx,
		openSession(cfg, logger),
		func(browser.Page) []pipeline.Step { return buildSteps(cfg, tbl, since, stats, logger) },
		stats, logger)
	if err != nil {
		return err
	}

	stats.Print(out)
	if ok {
		logger.Info(stats.Summary())
	} else {
		logger.Warn(stats.Summary())
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Info("received shutdown signal")
	}
	return nil
}

// buildConfig creates a Config from flags and the environment. Flags win.
func buildConfig(cmd *cobra.Command, getenv func(string) string) (*config.Config, time.Time, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Endpoint, err = flags.GetString("endpoint"); err != nil {
		return nil, time.Time{}, err
	}
	if cfg.BaseURL, err = flags.GetString("base-url"); err != nil {
		return nil, time.Time{}, err
	}
	if cfg.DownloadDir, err = flags.GetString("download"); err != nil {
		return nil, time.Time{}, err
	}
	if cfg.LocatorsFile, err = flags.GetString("locators"); err != nil {
		return nil, time.Time{}, err
	}
	if cfg.WindowWidth, err = flags.GetInt("window-width"); err != nil {
		return nil, time.Time{}, err
	}
	if cfg.WindowHeight, err = flags.GetInt("window-height"); err != nil {
		return nil, time.Time{}, err
	}
	if cfg.LogFormat, err = flags.GetString("log-format"); err != nil {
		return nil, time.Time{}, err
	}
	if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, time.Time{}, err
	}
	cfg.FromEnv(getenv)

	sinceText, err := flags.GetString("since")
	if err != nil {
		return nil, time.Time{}, err
	}
	var since time.Time
	if sinceText != "" {
		if since, err = datefilter.ParseDate(sinceText); err != nil {
			return nil, time.Time{}, fmt.Errorf("--since: %w", err)
		}
	}
	return cfg, since, nil
}

func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogFormat == "json" {
		return logging.NewJSON(w, cfg.Verbose)
	}
	return logging.New(w, cfg.Verbose)
}

func openSession(cfg *config.Config, logger *slog.Logger) func(context.Context) (pipeline.Session, error) {
	return func(ctx context.Context) (pipeline.Session, error) {
		session, err := browser.New(ctx, browser.Config{
			Endpoint:     cfg.Endpoint,
			WindowWidth:  cfg.WindowWidth,
			WindowHeight: cfg.WindowHeight,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		if err := session.ConfigureDownloads(ctx, cfg.DownloadDir); err != nil {
			logger.Warn("could not configure download directory", "error", err)
		}
		return session, nil
	}
}

// buildSteps wires the three steps around one shared prober, listing and stats.
func buildSteps(cfg *config.Config, tbl *locator.Table, since time.Time, stats *report.Stats, logger *slog.Logger) []pipeline.Step {
	prober := probe.New(cfg.Timeouts.Poll, logger)
	listing := &navigation.Listing{}
	return []pipeline.Step{
		&auth.Step{
			URL:      cfg.BaseURL,
			Username: cfg.Username,
			Password: cfg.Password,
			Prober:   prober,
			Table:    tbl,
			Timeouts: cfg.Timeouts,
			Stats:    stats,
			Logger:   logger.With("step", "login"),
		},
		&navigation.Step{
			BaseURL:      cfg.BaseURL,
			DashboardURL: cfg.PageURL(tbl.DashboardPath),
			Since:        since,
			Listing:      listing,
			Consent: &consent.Handler{
				Prober:   prober,
				Table:    tbl,
				Timeouts: cfg.Timeouts,
				Logger:   logger.With("step", "consent"),
			},
			Prober:   prober,
			Table:    tbl,
			Timeouts: cfg.Timeouts,
			Stats:    stats,
			Logger:   logger.With("step", "listing"),
		},
		&download.Step{
			Listing:  listing,
			Prober:   prober,
			Table:    tbl,
			Timeouts: cfg.Timeouts,
			Stats:    stats,
			Logger:   logger.With("step", "download"),
		},
	}
}
