package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var historyHeaders = []string{"ID", "TASK", "SERVER", "STATUS", "DURATION", "COMPLETED", "ERROR"}

func historyRows(records []HistoryResponse) [][]string {
	rows := make([][]string, len(records))
	for i, h := range records {
		rows[i] = []string{
			strconv.FormatInt(h.ID, 10),
			h.TaskName,
			shortID(h.ServerID),
			h.Status,
			h.Duration,
			h.CompletedAt,
			orDash(h.Error),
		}
	}
	return rows
}

// shortID сокращает UUID процесса до первых 8 символов.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// NewHistoryCmd создаёт команду просмотра истории выполнений.
func NewHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts HistoryOpts

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show execution history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := clientFn().ListHistory(opts)
			if err != nil {
				return err
			}

			out := outputFn()
			if out.IsJSON() {
				out.JSON(page)
				return nil
			}

			out.Table(historyHeaders, historyRows(page.Data))

			p := page.Pagination
			msg := fmt.Sprintf("showing %d-%d of %d", p.Offset+min(1, len(page.Data)), p.Offset+len(page.Data), p.Total)
			if p.HasMore {
				msg += fmt.Sprintf(" (next: --offset %d)", p.Offset+len(page.Data))
			}
			out.Info(msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.TaskName, "task", "", "Filter by task name")
	cmd.Flags().StringVar(&opts.ServerID, "server", "", "Filter by server id")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (completed, failed)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of records (server default: 100)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of records to skip")

	return cmd
}
