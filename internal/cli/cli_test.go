package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tasksBody = `{"data":[
 {"id":1,"name":"cleanup_logs","interval_sec":30,"function_name":"cleanup_logs","status":"running","is_running":true,
  "server_id":"aaaa-bbbb","next_run_at":"2026-10-19T10:00:30Z","running_time":"5s"},
 {"id":2,"name":"send_report","interval_sec":120,"function_name":"send_report","status":"waiting","is_running":false,
  "next_run_at":"2026-10-19T10:02:00Z","time_until_next_run":"1m 30s"}
],"total":2}`

func newTestServer(t *testing.T, lastQuery *string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tasksBody))
	})
	mux.HandleFunc("GET /api/v1/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "1" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"task not found"}}`))
			return
		}
		w.Write([]byte(`{"data":{"id":1,"name":"cleanup_logs","interval_sec":30,"function_name":"cleanup_logs",
			"status":"waiting","next_run_at":"2026-10-19T10:00:30Z",
			"recent_history":[{"id":7,"task_id":1,"task_name":"cleanup_logs","server_id":"1234abcd-0000",
			"duration":"2s","status":"failed","error":"boom"}]}}`))
	})
	mux.HandleFunc("GET /api/v1/tasks/history", func(w http.ResponseWriter, r *http.Request) {
		*lastQuery = r.URL.RawQuery
		w.Write([]byte(`{"data":[{"id":3,"task_id":2,"task_name":"send_report","server_id":"s1","status":"completed","duration":"1s"}],
			"pagination":{"total":5,"limit":1,"offset":2,"has_more":true}}`))
	})
	mux.HandleFunc("GET /api/v1/tasks/stats", func(w http.ResponseWriter, r *http.Request) {
		*lastQuery = r.URL.RawQuery
		w.Write([]byte(`{"data":{"window":"1h","tasks":{"total":2,"running":1,"waiting":1},
			"executions":{"total":4,"completed":3,"failed":1,"success_rate":75,"success_rate_formatted":"75.0%"},
			"performance":[{"task_name":"send_report","avg_duration":"3s","execution_count":3}],
			"active_servers":["s1"]}}`))
	})
	mux.HandleFunc("GET /api/v1/scheduler", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"server_id":"s1","state":"running","executing":false,"functions":["a","b"]}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCmd(t *testing.T, srv *httptest.Server, jsonMode bool, build func(func() *Client, func() *Output) *cobra.Command, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	clientFn := func() *Client { return NewClient(srv.URL) }
	outputFn := func() *Output { return NewOutputTo(jsonMode, &stdout, &stderr) }

	if args == nil {
		args = []string{}
	}

	cmd := build(clientFn, outputFn)
	cmd.SetArgs(args)
	cmd.SetOut(&stderr)
	cmd.SetErr(&stderr)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestClient_ListTasks(t *testing.T) {
	var q string
	srv := newTestServer(t, &q)

	tasks, err := NewClient(srv.URL).ListTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "cleanup_logs", tasks[0].Name)
	assert.True(t, tasks[0].IsRunning)
	assert.Equal(t, 120, tasks[1].IntervalSec)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	var q string
	srv := newTestServer(t, &q)

	_, err := NewClient(srv.URL).GetTask(42)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND: task not found", err.Error())
}

func TestClient_ListHistoryQuery(t *testing.T) {
	var q string
	srv := newTestServer(t, &q)

	page, err := NewClient(srv.URL).ListHistory(HistoryOpts{TaskName: "send_report", Status: "completed", Limit: 1, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, "limit=1&offset=2&status=completed&task_name=send_report", q)
	assert.Equal(t, 5, page.Pagination.Total)
	assert.True(t, page.Pagination.HasMore)
	require.Len(t, page.Data, 1)
}

func TestTaskListCmd_Table(t *testing.T) {
	var q string
	srv := newTestServer(t, &q)

	out, _, err := runCmd(t, srv, false, NewTaskCmd, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[2], "cleanup_logs")
	assert.Contains(t, lines[2], "5s")
	assert.Contains(t, lines[3], "1m 30s")
}

func TestTaskListCmd_JSON(t *testing.T) {
	var q string
	srv := newTestServer(t, &q)

	out, _, err := runCmd(t, srv, true, NewTaskCmd, "list")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "["))
	assert.Contains(t, out, `"name": "send_report"`)
}

func TestTaskShowCmd(t *testing.T) {
	var q string
	srv := newTestServer(t, &q)

	out, _, err := runCmd(t, srv, false, NewTaskCmd, "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Recent executions")
	assert.Contains(t, out, "1234abcd")
	assert.Contains(t, out, "boom")

	_, _, err = runCmd(t, srv, false, NewTaskCmd, "show", "abc")
	assert.EqualError(t, err, `invalid task id "abc"`)
}

func TestHistoryCmd_Pagination(t *testing.T) {
	var q string
	srv := newTestServer(t, &q)

	out, info, err := runCmd(t, srv, false, NewHistoryCmd, "--task", "send_report", "--limit", "1", "--offset", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "send_report")
	assert.Equal(t, "showing 3-3 of 5 (next: --offset 3)\n", info)
	assert.Equal(t, "limit=1&offset=2&task_name=send_report", q)
}

func TestStatsCmd(t *testing.T) {
	var q string
	srv := newTestServer(t, &q)

	out, _, err := runCmd(t, srv, false, NewStatsCmd, "--window", "1h")
	require.NoError(t, err)
	assert.Equal(t, "window=1h", q)
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "send_report")
}

func TestSchedulerCmd(t *testing.T) {
	var q string
	srv := newTestServer(t, &q)

	out, _, err := runCmd(t, srv, false, NewSchedulerCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "a, b")
}
