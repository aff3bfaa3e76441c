package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TaskResponse — задача из API.
type TaskResponse struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	IntervalSec        int    `json:"interval_sec"`
	FunctionName       string `json:"function_name"`
	Status             string `json:"status"`
	IsRunning          bool   `json:"is_running"`
	ServerID           string `json:"server_id,omitempty"`
	StartedAt          string `json:"started_at,omitempty"`
	LastRunAt          string `json:"last_run_at,omitempty"`
	NextRunAt          string `json:"next_run_at"`
	RunningTime        string `json:"running_time,omitempty"`
	TimeUntilNextRun   string `json:"time_until_next_run,omitempty"`
	RunningTimeMs      int64  `json:"running_time_ms,omitempty"`
	TimeUntilNextRunMs int64  `json:"time_until_next_run_ms,omitempty"`
}

// TaskDetailResponse — задача с последними выполнениями.
type TaskDetailResponse struct {
	TaskResponse
	RecentHistory []HistoryResponse `json:"recent_history"`
}

// HistoryResponse — запись истории из API.
type HistoryResponse struct {
	ID          int64  `json:"id"`
	TaskID      int64  `json:"task_id"`
	TaskName    string `json:"task_name"`
	ServerID    string `json:"server_id"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at"`
	DurationMs  int64  `json:"duration_ms"`
	Duration    string `json:"duration"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// Pagination — параметры страницы истории.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// HistoryPage — страница истории.
type HistoryPage struct {
	Data       []HistoryResponse `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

// StatsResponse — статистика из API.
type StatsResponse struct {
	Window string `json:"window"`
	Tasks  struct {
		Total   int `json:"total"`
		Running int `json:"running"`
		Waiting int `json:"waiting"`
	} `json:"tasks"`
	Executions struct {
		Total       int     `json:"total"`
		Completed   int     `json:"completed"`
		Failed      int     `json:"failed"`
		SuccessRate float64 `json:"success_rate"`
		Rate        string  `json:"success_rate_formatted"`
	} `json:"executions"`
	Performance []struct {
		TaskName       string `json:"task_name"`
		AvgDurationMs  int64  `json:"avg_duration_ms"`
		AvgDuration    string `json:"avg_duration"`
		ExecutionCount int    `json:"execution_count"`
	} `json:"performance"`
	ActiveServers []string `json:"active_servers"`
}

// SchedulerResponse — состояние планировщика процесса API.
type SchedulerResponse struct {
	ServerID  string   `json:"server_id"`
	State     string   `json:"state"`
	Executing bool     `json:"executing"`
	Functions []string `json:"functions"`
}

// HistoryOpts — параметры фильтрации истории.
type HistoryOpts struct {
	TaskName string
	ServerID string
	Status   string
	Limit    int
	Offset   int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для cronfleet API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListTasks возвращает все задачи.
func (c *Client) ListTasks() ([]TaskResponse, error) {
	var tasks []TaskResponse
	err := c.list("/api/v1/tasks", &tasks)
	return tasks, err
}

// GetTask возвращает задачу с последними выполнениями.
func (c *Client) GetTask(id int64) (*TaskDetailResponse, error) {
	var task TaskDetailResponse
	err := c.data("/api/v1/tasks/"+strconv.FormatInt(id, 10), &task)
	return &task, err
}

// ListHistory возвращает страницу истории.
func (c *Client) ListHistory(opts HistoryOpts) (*HistoryPage, error) {
	params := url.Values{}
	if opts.TaskName != "" {
		params.Set("task_name", opts.TaskName)
	}
	if opts.ServerID != "" {
		params.Set("server_id", opts.ServerID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	path := "/api/v1/tasks/history"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var page HistoryPage
	err := c.getJSON(path, &page)
	return &page, err
}

// Stats возвращает статистику за окно (пусто — окно сервера).
func (c *Client) Stats(window string) (*StatsResponse, error) {
	path := "/api/v1/tasks/stats"
	if window != "" {
		path += "?" + url.Values{"window": {window}}.Encode()
	}

	var stats StatsResponse
	err := c.data(path, &stats)
	return &stats, err
}

// Scheduler возвращает состояние планировщика процесса API.
func (c *Client) Scheduler() (*SchedulerResponse, error) {
	var s SchedulerResponse
	err := c.data("/api/v1/scheduler", &s)
	return &s, err
}

// --- HTTP helpers ---

func (c *Client) data(path string, result any) error {
	var dr dataResponse
	if err := c.getJSON(path, &dr); err != nil {
		return err
	}
	return json.Unmarshal(dr.Data, result)
}

func (c *Client) list(path string, result any) error {
	var lr listResponse
	if err := c.getJSON(path, &lr); err != nil {
		return err
	}
	return json.Unmarshal(lr.Data, result)
}

func (c *Client) getJSON(path string, result any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
