package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pennywise-hq/budgetd/pkg/cache"
	"pennywise-hq/budgetd/pkg/cli"
)

var cacheFlags struct {
	pattern string
	user    string
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the budget period cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached budget totals",
	Long: `Delete cached budget totals. Totals are rebuilt from the ledger on the
next read, so clearing is always safe.

Examples:
  # Drop every cached total
  pennywise cache clear

  # Drop one user's totals
  pennywise cache clear --user 6651c0e2

  # Drop by glob pattern
  pennywise cache clear --pattern 'budget:*:weekly:*'`,
	RunE: runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().StringVar(&cacheFlags.pattern, "pattern", "", "glob pattern of keys to delete (default all budget keys)")
	cacheClearCmd.Flags().StringVar(&cacheFlags.user, "user", "", "delete every entry of this user")
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	if cacheFlags.pattern != "" && cacheFlags.user != "" {
		return cli.NewConfigError("pattern", "--pattern and --user are mutually exclusive")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	store, err := a.openStore(ctx)
	if err != nil {
		return cli.NewCommandError("cache clear", err)
	}

	pattern := cacheFlags.pattern
	if cacheFlags.user != "" {
		pattern = cache.UserPattern(cacheFlags.user)
	}
	n, err := cache.New(store).Clear(ctx, pattern)
	if err != nil {
		return cli.NewCommandError("cache clear", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %d cache entries removed\n", n)
	return nil
}
