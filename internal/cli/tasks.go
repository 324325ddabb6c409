package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
)

func newTasksCommand(env *environment) *cobra.Command {
	tasks := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and retry compensation tasks",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List compensation tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString("status")
			switch domain.TaskStatus(status) {
			case "", domain.TaskPending, domain.TaskDone, domain.TaskOrphaned:
			default:
				return fmt.Errorf("unknown status %q (want pending, done or orphaned)", status)
			}
			op, err := env.operator(cmd, true)
			if err != nil {
				return err
			}
			defer op.close()

			found, err := op.Outbox.List(cmd.Context(), domain.TaskStatus(status))
			if err != nil {
				return fmt.Errorf("list compensation tasks: %w", err)
			}
			if len(found) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No compensation tasks.")
				return nil
			}
			return printTasks(cmd.OutOrStdout(), found)
		},
	}
	list.Flags().String("status", "", "Filter by status: pending, done, orphaned")

	retry := &cobra.Command{
		Use:   "retry <order-id>",
		Short: "Requeue a task and attempt the cancellation now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := env.operator(cmd, true)
			if err != nil {
				return err
			}
			defer op.close()

			task, res, err := op.Relay.Retry(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("retry %s: %w", args[0], err)
			}
			if !res.IsSuccessful {
				return fmt.Errorf("cancellation of %s failed with status %d: %s (task %s, attempts %d)",
					task.OrderID, res.StatusCode, res.Message(), task.Status, task.Attempts)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released reservation %s.\n", task.OrderID)
			return nil
		},
	}

	tasks.AddCommand(list, retry)
	return tasks
}

func printTasks(out io.Writer, tasks []*domain.CompensationTask) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER ID\tSTATUS\tATTEMPTS\tNEXT ATTEMPT\tLAST ERROR")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", t.OrderID, t.Status, t.Attempts, t.NextAttemptAt.UTC().Format(time.RFC3339), t.LastError)
	}
	return w.Flush()
}
