package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pennywise-hq/budgetd/pkg/cli"
	"pennywise-hq/budgetd/pkg/queue"
)

var queueFlags struct {
	output string
	grace  time.Duration
	status string
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and maintain the alert queue",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts by state",
	Example: `  pennywise queue stats
  pennywise queue stats -o json`,
	RunE: runQueueStats,
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Move failed jobs back to waiting",
	RunE:  runQueueRetry,
}

var queueCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove finished jobs older than the grace period",
	Example: `  pennywise queue clean --grace 72h
  pennywise queue clean --status failed`,
	RunE: runQueueClean,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueStatsCmd, queueRetryCmd, queueCleanCmd)

	queueStatsCmd.Flags().StringVarP(&queueFlags.output, "output", "o", "text", "output format (text, json, csv)")
	queueCleanCmd.Flags().DurationVar(&queueFlags.grace, "grace", 168*time.Hour, "minimum age of removed jobs")
	queueCleanCmd.Flags().StringVar(&queueFlags.status, "status", "completed", "job state to remove (completed, failed)")
}

func openQueueForCommand() (*app, queue.Queue, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(cfg)
	if err != nil {
		return nil, nil, err
	}
	q, err := a.openQueue()
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, q, nil
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(queueFlags.output)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}
	a, q, err := openQueueForCommand()
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := q.Stats(cmd.Context())
	if err != nil {
		return cli.NewCommandError("queue stats", err)
	}

	t := cli.Table{Headers: []string{"state", "jobs"}}
	t.Append(string(queue.StatusWaiting), strconv.FormatInt(s.Waiting, 10))
	t.Append(string(queue.StatusActive), strconv.FormatInt(s.Active, 10))
	t.Append(string(queue.StatusDelayed), strconv.FormatInt(s.Delayed, 10))
	t.Append(string(queue.StatusCompleted), strconv.FormatInt(s.Completed, 10))
	t.Append(string(queue.StatusFailed), strconv.FormatInt(s.Failed, 10))
	t.Append("total", strconv.FormatInt(s.Total(), 10))
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), t)
}

func runQueueRetry(cmd *cobra.Command, args []string) error {
	a, q, err := openQueueForCommand()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := q.RetryFailed(cmd.Context())
	if err != nil {
		return cli.NewCommandError("queue retry", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %d failed jobs moved back to waiting\n", n)
	return nil
}

func runQueueClean(cmd *cobra.Command, args []string) error {
	status := queue.Status(queueFlags.status)
	if status != queue.StatusCompleted && status != queue.StatusFailed {
		return cli.NewConfigError("status", fmt.Sprintf("must be completed or failed, got %q", queueFlags.status))
	}
	a, q, err := openQueueForCommand()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := q.Clean(cmd.Context(), queueFlags.grace, status)
	if err != nil {
		return cli.NewCommandError("queue clean", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %d %s jobs removed\n", n, status)
	return nil
}
