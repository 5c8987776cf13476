package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// File extensions offered when completing positional arguments.
var (
	geometryExts = []string{"gdml"}
	dataExts     = []string{"root", "db", "sqlite", "sqlite3"}
)

// completionCommand prints a shell completion script for evdisplay.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for the given shell. Geometry arguments
complete to .gdml files and data arguments to .root and SQLite files.

  $ source <(evdisplay completion bash)
  $ evdisplay completion zsh > "${fpath[1]}/_evdisplay"
  $ evdisplay completion fish > ~/.config/fish/completions/evdisplay.fish
  PS> evdisplay completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(os.Stdout, true)
			case "zsh":
				return root.GenZshCompletion(os.Stdout)
			case "fish":
				return root.GenFishCompletion(os.Stdout, true)
			default:
				return root.GenPowerShellCompletionWithDesc(os.Stdout)
			}
		},
	}
}

// completePositional completes the i-th positional argument to files with
// the extensions in exts[i]. Further arguments get no completion.
func completePositional(exts ...[]string) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		if len(args) >= len(exts) {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return exts[len(args)], cobra.ShellCompDirectiveFilterFileExt
	}
}
