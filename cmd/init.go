package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmurray2011/logweave/internal/source"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write ~/.logweave/config.yaml with the default driver settings:
streams merging for named log groups and adaptive Insights queries for
task (Lambda) log groups, both with a one hour window.

Examples:
  # Create the config (won't overwrite an existing one)
  logweave init

  # Reset an existing config to the defaults
  logweave init --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	app, err := GetApp(cmd)
	if err != nil {
		return err
	}
	render := app.Render

	path := source.ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine home directory")
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			render.Warning("%s already exists (use --force to overwrite)", path)
			return nil
		}
	}

	if err := source.SaveConfig(source.DefaultConfig()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	render.Success("Created %s", path)
	render.Section("Next steps")
	render.Info("Add group aliases under \"groups:\" and pick drivers under \"group_driver:\" and \"task_driver:\".")
	return nil
}
