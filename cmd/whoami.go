package cmd

import (
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the AWS account and principal logweave reads as",
	Long: `Resolve the credentials from --profile, --region and --role-arn (or the
LOGWEAVE_* environment) and print who they belong to.

Examples:
  logweave whoami --profile prod
  logweave whoami --role-arn arn:aws:iam::123456789012:role/log-reader`,
	Args: cobra.NoArgs,
	RunE: runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	app, err := GetApp(cmd)
	if err != nil {
		return err
	}
	id, err := app.Identity(cmd.Context())
	if err != nil {
		return err
	}

	render := app.Render
	render.Section("AWS identity")
	render.KeyValue("Account", id.Account)
	render.KeyValue("ARN", id.ARN)
	render.KeyValue("Region", id.Region)
	return nil
}
