package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/lingoxa/internal/api"
	"github.com/MrWong99/lingoxa/internal/app"
	"github.com/MrWong99/lingoxa/internal/config"
	"github.com/MrWong99/lingoxa/internal/observe"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var (
		origins []string
		reload  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Serves the practice API, the voice websocket, health checks and Prometheus metrics. Edits to the config file are picked up while running.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, origins, reload)
		},
	}
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "extra origin patterns allowed to open the voice websocket")
	cmd.Flags().DurationVar(&reload, "reload-interval", 5*time.Second, "how often the config file is checked for changes")
	return cmd
}

func runServe(cmd *cobra.Command, origins []string, reload time.Duration) error {
	path, _ := cmd.Flags().GetString("config")

	var application *app.App
	watcher, err := config.NewWatcher(path, func(old, new *config.Config) {
		application.ApplyConfig(old, new)
	}, config.WithInterval(reload))
	if err != nil {
		return configError(path, err)
	}
	cfg := watcher.Current()

	logger, level := newLogger(os.Stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)
	slog.Info("lingoxa starting", "config", path, "listen_addr", cfg.Server.Addr(), "log_level", cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	providers, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		return err
	}

	printStartupSummary(cmd.OutOrStdout(), cfg)

	application, err = app.New(ctx, cfg, providers,
		app.WithMetrics(metrics),
		app.WithLogLevel(level),
		app.WithWatcher(watcher),
	)
	if err != nil {
		return err
	}

	srv := api.New(application, api.WithMetrics(metrics), api.WithOriginPatterns(origins...))
	slog.Info("server ready, press Ctrl+C to shut down")
	runErr := application.Run(ctx, srv.Handler())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	if runErr != nil {
		return runErr
	}
	slog.Info("goodbye")
	return nil
}

func printStartupSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║         Lingoxa, startup summary      ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printProvider(w, "LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	fmt.Fprintf(w, "║  Fallbacks       : %-19d ║\n", len(cfg.Providers.Fallbacks))
	printProvider(w, "STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider(w, "TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Fprintf(w, "║  Native language : %-19s ║\n", cfg.Practice.Language())
	fmt.Fprintf(w, "║  Scenarios       : %-19d ║\n", len(cfg.Scenarios))
	archive := "(disabled)"
	if cfg.Archive.PostgresDSN != "" {
		archive = "postgres"
	}
	fmt.Fprintf(w, "║  Archive         : %-19s ║\n", archive)
	fmt.Fprintf(w, "║  Listen addr     : %-19s ║\n", cfg.Server.Addr())
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func printProvider(w io.Writer, kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:18]) + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", kind, value)
}
