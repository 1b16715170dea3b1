package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jmurray2011/logweave/internal/cloudwatch"
)

var (
	statsNamespace string
	statsDriver    string
	statsGroup     string
	statsStatistic string
	statsPeriod    time.Duration
)

var statsCmd = &cobra.Command{
	Use:   "stats <metric>",
	Short: "Show run statistics published with --publish-stats",
	Long: `Read back a statistic that earlier runs published with --publish-stats.

Metrics: Queries, MeanQueryLatency, Stalls, DecodeErrors (insights driver),
PeakBuffered (streams driver), BackendCalls, Records, RunDuration (both).

Examples:
  # Publish while reading, then look at query latency over the last day
  logweave task orders -s 6h --publish-stats Logweave
  logweave stats MeanQueryLatency --namespace Logweave --driver insights -s 1d --statistic avg`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsNamespace, "namespace", cloudwatch.DefaultStatsNamespace, "Metric namespace")
	statsCmd.Flags().StringVar(&statsDriver, "driver", "", "Only runs of this driver (insights or streams)")
	statsCmd.Flags().StringVar(&statsGroup, "group", "", "Only runs reading this log group")
	statsCmd.Flags().StringVar(&statsStatistic, "statistic", "sum", "sum, avg, min, max or count")
	statsCmd.Flags().DurationVar(&statsPeriod, "period", time.Hour, "Aggregation period")
}

func runStats(cmd *cobra.Command, args []string) error {
	app, err := GetApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	from, to, err := app.TimeRange()
	if err != nil {
		return err
	}

	api, err := app.NewMetrics(ctx, app)
	if err != nil {
		return err
	}
	points, err := cloudwatch.NewStatsPublisher(api, statsNamespace).History(ctx, cloudwatch.StatsQuery{
		Metric:    args[0],
		Driver:    statsDriver,
		Group:     statsGroup,
		Statistic: statsStatistic,
		Period:    statsPeriod,
		Start:     from,
		End:       to,
	})
	if err != nil {
		return err
	}

	formatter, err := app.Formatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return formatter.FormatStatPoints(args[0], points)
}
