package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/jmurray2011/logweave/internal/errors"
)

var taskRequestID string

var taskCmd = &cobra.Command{
	Use:   "task <name>",
	Short: "Print a task's logs, or one execution of it",
	Long: `Print the logs of a task (by default a Lambda function, whose log group
is the task name under task_group_prefix, /aws/lambda/ unless configured).

With --request-id only the events of that execution are printed.

Examples:
  # Last hour of a function
  logweave task orders

  # One invocation
  logweave task orders --request-id 3f1c0a7e-5b7d-4c1e-9a51-0f2d7b6c8e11 -s 1d`,
	Args: cobra.ExactArgs(1),
	RunE: runTask,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.Flags().StringVar(&taskRequestID, "request-id", "", "Only show one execution")
	taskCmd.Flags().StringVar(&highlight, "highlight", "", "Highlight a pattern in text output")
}

func runTask(cmd *cobra.Command, args []string) error {
	app, err := GetApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	task := args[0]

	if cmd.Flags().Changed("request-id") && strings.TrimSpace(taskRequestID) == "" {
		return apperrors.MissingFlagError("--request-id", []string{
			"logweave task " + task + " --request-id 3f1c0a7e-5b7d-4c1e-9a51-0f2d7b6c8e11",
		})
	}

	from, to, err := app.TimeRange()
	if err != nil {
		return err
	}

	client, err := app.LogClient(ctx)
	if err != nil {
		return err
	}

	if taskRequestID == "" {
		app.Render.Status("Reading %s...", app.Settings.TaskGroup(task))
		return app.WriteRecords(ctx, client, client.TaskLogs(ctx, task, from, to), cmd.OutOrStdout())
	}

	app.Render.Status("Looking for %s in %s...", taskRequestID, app.Settings.TaskGroup(task))
	seq := client.TaskExecutionLogs(ctx, task, taskRequestID, from, to)
	return app.WriteRecords(ctx, client, seq, cmd.OutOrStdout())
}
