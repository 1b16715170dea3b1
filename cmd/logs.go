package cmd

import (
	"github.com/spf13/cobra"
)

var highlight string

var logsCmd = &cobra.Command{
	Use:   "logs <group|@alias>",
	Short: "Print a log group's events in time order",
	Long: `Print every event a log group wrote between --start and --end, ordered
by timestamp across all of its log streams.

The group may be a full name, an @alias from the config file, or part of
a name: "orders-api" matches "/aws/apigateway/orders-api-gateway".

Examples:
  # Last hour of a group
  logweave logs /app/orders

  # A fixed range, highlighting errors
  logweave logs @api -s 2024-01-15T09:00:00Z -e 2024-01-15T09:15:00Z --highlight "error|timeout"

  # Newline-delimited JSON for further processing
  logweave logs /app/orders -s 6h -o json | jq .message`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().StringVar(&highlight, "highlight", "", "Highlight a pattern in text output")
}

func runLogs(cmd *cobra.Command, args []string) error {
	app, err := GetApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	from, to, err := app.TimeRange()
	if err != nil {
		return err
	}

	client, err := app.LogClient(ctx)
	if err != nil {
		return err
	}
	group, err := client.ResolveGroup(ctx, args[0])
	if err != nil {
		return err
	}

	app.Render.Status("Reading %s...", group)
	return app.WriteRecords(ctx, client, client.GroupLogs(ctx, group, from, to), cmd.OutOrStdout())
}
