package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"pennywise-hq/budgetd/pkg/cli"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued budget alert emails",
	Long: `Run only the alert worker. Jobs are claimed from the shared queue,
sent through the configured mail transport and retried with exponential
backoff on failure.

Examples:
  pennywise worker --config /etc/pennywise/config.yaml`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	w, err := a.buildWorker(ctx)
	if err != nil {
		return cli.NewCommandError("worker", err)
	}
	w.Start(ctx)
	a.startJanitor(ctx)
	a.watchQueueDepth(ctx, 15*time.Second)
	watchConfig(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Alert worker started (concurrency %d, queue %s)\n", cfg.Queue.Concurrency, cfg.Queue.Backend)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	<-ctx.Done()
	slog.Info("shutting down alert worker")
	w.Stop()
	fmt.Fprintln(out, "✓ Worker stopped")
	return nil
}
