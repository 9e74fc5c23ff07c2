package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
)

// completionCmd represents the completion command.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for bash or zsh.

Bash:

  $ source <(trustfetch completion bash)

  # To load completions for each session, execute once:
  $ trustfetch completion bash > /etc/bash_completion.d/trustfetch

Zsh:

  # If shell completion is not already enabled in your environment,
  # enable it once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ trustfetch completion zsh > "${fpath[1]}/_trustfetch"`,
	ValidArgs: []string{"bash", "zsh"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      runCompletion,
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	switch args[0] {
	case "bash":
		return cmd.Root().GenBashCompletion(stdout)
	case "zsh":
		return cmd.Root().GenZshCompletion(stdout)
	default:
		return fail(tferrors.ExitConfigError, fmt.Errorf("unsupported shell: %s (supported: bash, zsh)", args[0]), "")
	}
}
