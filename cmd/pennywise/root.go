package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pennywise-hq/budgetd/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pennywise",
	Short: "Pennywise budget service",
	Long: `Pennywise serves the expense and budget API and delivers budget alert
emails.

Spending totals per budget period are cached and kept in step with every
expense write. When a user's spending crosses an alert threshold, an email
job is queued and delivered by the worker.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
