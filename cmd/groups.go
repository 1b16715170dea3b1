package cmd

import (
	"github.com/spf13/cobra"
)

var (
	groupsPrefix  string
	groupsLimit   int
	groupsAliases bool
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List available log groups",
	Long: `List CloudWatch log groups in the account, or the group aliases defined
in the config file.

Examples:
  # List all log groups
  logweave groups

  # Filter by prefix
  logweave groups --prefix /aws/lambda/

  # Show configured @aliases
  logweave groups --aliases

  # Output as JSON
  logweave groups -o json`,
	Args: cobra.NoArgs,
	RunE: runGroups,
}

func init() {
	rootCmd.AddCommand(groupsCmd)

	groupsCmd.Flags().StringVar(&groupsPrefix, "prefix", "", "Filter log groups by prefix")
	groupsCmd.Flags().IntVarP(&groupsLimit, "limit", "l", 50, "Max log groups to return (0 for all)")
	groupsCmd.Flags().BoolVar(&groupsAliases, "aliases", false, "List config file aliases instead")
}

func runGroups(cmd *cobra.Command, args []string) error {
	app, err := GetApp(cmd)
	if err != nil {
		return err
	}

	formatter, err := app.Formatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if groupsAliases {
		return formatter.FormatAliases(app.Settings.Groups)
	}

	client, err := app.LogClient(cmd.Context())
	if err != nil {
		return err
	}
	groups, err := client.Groups(cmd.Context(), groupsPrefix, groupsLimit)
	if err != nil {
		return err
	}
	return formatter.FormatGroups(groups)
}
