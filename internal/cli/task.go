package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для просмотра задач.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect scheduled tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks with their current status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := clientFn().ListTasks()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "FUNCTION", "INTERVAL", "STATUS", "SERVER", "NEXT_RUN", "TIMING"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				timing := t.TimeUntilNextRun
				if t.IsRunning {
					timing = t.RunningTime
				}
				rows[i] = []string{
					strconv.FormatInt(t.ID, 10),
					t.Name,
					t.FunctionName,
					fmt.Sprintf("%ds", t.IntervalSec),
					t.Status,
					orDash(t.ServerID),
					t.NextRunAt,
					orDash(timing),
				}
			}

			outputFn().Print(headers, rows, tasks)
			return nil
		},
	}
}

func newTaskShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a task and its recent executions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}

			task, err := clientFn().GetTask(id)
			if err != nil {
				return err
			}

			out := outputFn()
			if out.IsJSON() {
				out.JSON(task)
				return nil
			}

			out.Fields([][2]string{
				{"ID", strconv.FormatInt(task.ID, 10)},
				{"Name", task.Name},
				{"Function", task.FunctionName},
				{"Interval", fmt.Sprintf("%ds", task.IntervalSec)},
				{"Status", task.Status},
				{"Server", orDash(task.ServerID)},
				{"Started", orDash(task.StartedAt)},
				{"Last run", orDash(task.LastRunAt)},
				{"Next run", task.NextRunAt},
			})

			out.Section("Recent executions")
			out.Table(historyHeaders, historyRows(task.RecentHistory))
			return nil
		},
	}
}
