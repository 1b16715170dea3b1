package cmd

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmurray2011/logweave/internal/source"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for logweave. Group arguments
complete to the @aliases of the config file.

  bash:        source <(logweave completion bash)
  zsh:         logweave completion zsh > "${fpath[1]}/_logweave"
  fish:        logweave completion fish | source
  powershell:  logweave completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)

	logsCmd.ValidArgsFunction = completeGroupAliases
	streamsCmd.ValidArgsFunction = completeGroupAliases
}

// completeGroupAliases offers the config file's @aliases for the first
// argument. It never calls AWS.
func completeGroupAliases(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg, err := source.LoadConfig(cfgFile)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return matchAliases(cfg, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func matchAliases(cfg *source.Config, prefix string) []string {
	var out []string
	for _, alias := range cfg.Aliases() {
		if strings.HasPrefix(alias, prefix) {
			out = append(out, alias+"\t"+cfg.Groups[alias[1:]])
		}
	}
	sort.Strings(out)
	return out
}
