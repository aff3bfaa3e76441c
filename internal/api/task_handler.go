package api

import (
	"net/http"
	"strconv"
)

// recentHistoryLimit — сколько записей истории отдаётся вместе с задачей.
const recentHistoryLimit = 10

// ListTasks возвращает все задачи с производным статусом.
// GET /api/v1/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List(r.Context())
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	now := h.now()
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t, now)
	}

	List(w, result, len(result))
}

// GetTask возвращает задачу и её последние выполнения.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(w, "invalid task id")
		return
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "task not found") {
		return
	}

	recent, err := h.history.ListByTask(r.Context(), task.ID, recentHistoryLimit)
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	Success(w, TaskDetailResponse{
		TaskResponse:  TaskFromDomain(*task, h.now()),
		RecentHistory: historyList(recent),
	})
}

// GetScheduler возвращает состояние планировщика этого процесса.
// GET /api/v1/scheduler
func (h *Handler) GetScheduler(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		Unavailable(w, "scheduler is not running in this process")
		return
	}

	Success(w, SchedulerResponse{
		ServerID:  h.scheduler.ServerID(),
		State:     h.scheduler.State().String(),
		Executing: h.scheduler.IsExecuting(),
		Functions: h.scheduler.Functions(),
	})
}
