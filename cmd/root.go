package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	profile      string
	region       string
	roleARN      string
	outputFormat string
	startFlag    string
	endFlag      string
	publishStats string
	verbose      bool
	noColor      bool
	quiet        bool
)

var rootCmd = &cobra.Command{
	Use:   "logweave",
	Short: "Read CloudWatch logs in time order across streams",
	Long: `logweave reads CloudWatch log groups over a time range and prints the
events in timestamp order, either by merging the group's log streams or
through windowed Logs Insights queries that adapt to the log volume.

Which retrieval driver serves a command is set per log category in
~/.logweave/config.yaml:

    group_driver:
      driver: streams   # streams or insights
      window: 1h
      day_prefix: false
    task_driver:
      driver: insights
      window: 1h
      dynamic: true
    task_group_prefix: /aws/lambda/
    requests_per_second: 5
    groups:
      api: /aws/apigateway/shop-api-gateway

    output:
      format: text      # text, json, csv
      timestamps: local # local, utc

Flags can also be set through LOGWEAVE_* environment variables
(LOGWEAVE_PROFILE, LOGWEAVE_REGION, ...).

Examples:
  # Everything a log group wrote in the last two hours
  logweave logs /app/orders -s 2h

  # Use a group alias from the config file, as JSON lines
  logweave logs @api -s 30m -o json

  # One Lambda invocation
  logweave task orders --request-id 3f1c0a7e-... -s 1d

  # List streams active yesterday
  logweave streams /app/orders -s 2d -e 1d`,
	SilenceUsage: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so in-flight reads stop cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// SetVersion sets the version string for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ~/.logweave/config.yaml)")
	flags.StringVarP(&profile, "profile", "p", "", "AWS profile")
	flags.StringVarP(&region, "region", "r", "", "AWS region")
	flags.StringVar(&roleARN, "role-arn", "", "IAM role to assume before reading")
	flags.StringVarP(&outputFormat, "output", "o", "", "Output format: text, json, csv")
	flags.StringVarP(&startFlag, "start", "s", "1h", "Start time (RFC3339, date, or relative like 2h)")
	flags.StringVarP(&endFlag, "end", "e", "now", "End time (RFC3339, date, or relative)")
	flags.StringVar(&publishStats, "publish-stats", "", "Publish run statistics to this CloudWatch metric namespace")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for debugging")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&quiet, "quiet", false, "Suppress status messages")

	for _, name := range []string{"profile", "region", "role-arn", "output", "publish-stats", "verbose"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".logweave"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LOGWEAVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}
}

// IsVerbose returns true if verbose mode is enabled
func IsVerbose() bool {
	return verbose || viper.GetBool("verbose")
}
