package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmurray2011/logweave/internal/source"
	"github.com/jmurray2011/logweave/internal/streams"
)

var (
	streamsByDay bool
	streamsLimit int
)

var streamsCmd = &cobra.Command{
	Use:   "streams <group|@alias>",
	Short: "List the log streams holding events in a time range",
	Long: `List the log streams of a group whose events overlap --start and --end,
ordered by first event time. These are the streams a merged read of the
same range would open.

Examples:
  # Streams with events in the last hour
  logweave streams /app/orders

  # Lambda streams are named by day; list one prefix per day
  logweave streams /aws/lambda/orders -s 3d --by-day`,
	Args: cobra.ExactArgs(1),
	RunE: runStreams,
}

func init() {
	rootCmd.AddCommand(streamsCmd)

	streamsCmd.Flags().BoolVar(&streamsByDay, "by-day", false, "List streams by yyyy/MM/dd name prefix")
	streamsCmd.Flags().IntVarP(&streamsLimit, "limit", "l", 0, "Max streams to show (0 for all)")
}

func runStreams(cmd *cobra.Command, args []string) error {
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

	backend, err := app.Backend(ctx)
	if err != nil {
		return err
	}
	app.Render.Status("Listing streams of %s...", group)

	cursors, err := streams.New(backend, streams.WithLogger(app.Log)).Discover(ctx, group, from, to, streamsByDay)
	if err != nil {
		return err
	}
	if streamsLimit > 0 && len(cursors) > streamsLimit {
		cursors = cursors[:streamsLimit]
	}

	descs := make([]source.Descriptor, len(cursors))
	for i, c := range cursors {
		first, last := c.Span()
		descs[i] = source.Descriptor{ID: c.ID(), FirstEventTime: first, LastEventTime: last}
	}

	formatter, err := app.Formatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return formatter.FormatSources(descs)
}
