package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var resultWait bool

var resultCmd = &cobra.Command{
	Use:   "result <task-id>",
	Short: "Show the stored result of a submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		client := newClient()
		if resultWait {
			res, err := client.WaitResult(ctx, args[0], pollInterval)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}
		res, err := client.GetResult(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List the workers registered with the coordinator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		workers, err := newClient().ListWorkers(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), workers)
	},
}

func init() {
	rootCmd.AddCommand(resultCmd)
	rootCmd.AddCommand(workersCmd)

	resultCmd.Flags().BoolVarP(&resultWait, "wait", "w", false, "poll until the submission finishes")
}
