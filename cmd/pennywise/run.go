package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"pennywise-hq/budgetd/pkg/cli"
	"pennywise-hq/budgetd/pkg/config"
	"pennywise-hq/budgetd/pkg/server"
	"pennywise-hq/budgetd/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	noWorker      bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Pennywise API server",
	Long: `Start the Pennywise API server with the specified configuration.

The server accepts expense writes, keeps the budget period cache in step
with the ledger and queues threshold alerts. By default an alert worker runs
in the same process; use --no-worker when workers run separately.

Examples:
  # Start with default config
  pennywise run

  # Start with custom config
  pennywise run --config /etc/pennywise/config.yaml

  # Override listen address
  pennywise run --listen 0.0.0.0:8080

  # Validate config without starting server
  pennywise run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.noWorker, "no-worker", false, "do not process alert jobs in this process")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	printBanner(cmd, cfg)

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing, tracing.WithVersion(Version))
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	svc, err := a.buildExpenses(ctx)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintf(out, "✓ Ledger ready (%s)\n", cfg.Database.Path)
	fmt.Fprintf(out, "✓ Budget cache ready (%s)\n", cfg.Cache.Backend)

	if !runFlags.noWorker {
		w, err := a.buildWorker(ctx)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		w.Start(ctx)
		defer w.Stop()
		fmt.Fprintf(out, "✓ Alert worker started (concurrency %d)\n", cfg.Queue.Concurrency)
	}

	a.startJanitor(ctx)
	a.watchQueueDepth(ctx, 15*time.Second)
	watchConfig(ctx)

	srv := server.New(cfg, server.Deps{
		Expenses: svc,
		Cache:    a.cache,
		Queue:    a.queue,
		Checker:  a.healthChecker(),
		Metrics:  a.metrics,
		Build:    server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
	})

	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(out, "✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pennywise v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)
	}
	fmt.Fprintln(out, "✓ Configuration loaded")

	if cfg.Auth.JWTSecret == "" {
		slog.Warn("auth.jwt_secret is empty, every /api request will be rejected")
	}
	slog.Debug("queue configured", "backend", cfg.Queue.Backend, "path", cfg.Queue.Path)
	if cfg.Mail.Enabled {
		slog.Debug("mail enabled", "host", cfg.Mail.Host, "port", cfg.Mail.Port)
	}
}
