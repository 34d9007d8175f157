package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for Pennywise.

To load completions:

Bash:
  $ source <(pennywise completion bash)
  # To load permanently:
  $ pennywise completion bash > /etc/bash_completion.d/pennywise

Zsh:
  $ pennywise completion zsh > "${fpath[1]}/_pennywise"
  $ compinit

Fish:
  $ pennywise completion fish | source
  # To load permanently:
  $ pennywise completion fish > ~/.config/fish/completions/pennywise.fish

PowerShell:
  PS> pennywise completion powershell | Out-String | Invoke-Expression
  # To load permanently, add to your PowerShell profile
`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
