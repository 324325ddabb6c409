package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCompensateCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compensate <order-id>",
		Short: "Cancel a reservation now, parking it on failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			op, err := env.operator(cmd, false)
			if err != nil {
				return err
			}
			defer op.close()
			if !op.Durable {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: outbox is in memory, a failed cancellation will not be retried")
			}

			res := op.Handler.Compensate(cmd.Context(), args[0], reason)
			if !res.IsSuccessful {
				return fmt.Errorf("cancellation of %s failed with status %d: %s", args[0], res.StatusCode, res.Message())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released reservation %s.\n", args[0])
			return nil
		},
	}
	cmd.Flags().String("reason", "manual compensation", "Reason recorded on the task")
	return cmd
}
