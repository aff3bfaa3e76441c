package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewStatsCmd создаёт команду просмотра статистики.
func NewStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var window string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show execution statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := clientFn().Stats(window)
			if err != nil {
				return err
			}

			out := outputFn()
			if out.IsJSON() {
				out.JSON(stats)
				return nil
			}

			out.Fields([][2]string{
				{"Window", stats.Window},
				{"Tasks", strconv.Itoa(stats.Tasks.Total)},
				{"Running", strconv.Itoa(stats.Tasks.Running)},
				{"Waiting", strconv.Itoa(stats.Tasks.Waiting)},
				{"Executions", strconv.Itoa(stats.Executions.Total)},
				{"Completed", strconv.Itoa(stats.Executions.Completed)},
				{"Failed", strconv.Itoa(stats.Executions.Failed)},
				{"Success rate", stats.Executions.Rate},
				{"Active servers", orDash(strings.Join(stats.ActiveServers, ", "))},
			})

			out.Section("Performance")
			rows := make([][]string, len(stats.Performance))
			for i, p := range stats.Performance {
				rows[i] = []string{p.TaskName, p.AvgDuration, strconv.Itoa(p.ExecutionCount)}
			}
			out.Table([]string{"TASK", "AVG_DURATION", "EXECUTIONS"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&window, "window", "", "Statistics window, e.g. 1h or 24h (server default: 24h)")

	return cmd
}

// NewSchedulerCmd создаёт команду просмотра планировщика процесса API.
func NewSchedulerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Show the scheduler state of the API process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := clientFn().Scheduler()
			if err != nil {
				return err
			}

			out := outputFn()
			if out.IsJSON() {
				out.JSON(s)
				return nil
			}

			out.Fields([][2]string{
				{"Server", s.ServerID},
				{"State", s.State},
				{"Executing", strconv.FormatBool(s.Executing)},
				{"Functions", strings.Join(s.Functions, ", ")},
			})
			return nil
		},
	}
}
