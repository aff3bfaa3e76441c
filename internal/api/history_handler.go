package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shaiso/cronfleet/internal/domain"
	"github.com/shaiso/cronfleet/internal/repo"
)

// Ограничения пагинации истории.
const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// ListHistory возвращает страницу истории выполнений.
// GET /api/v1/tasks/history?task_name=...&server_id=...&status=...&limit=...&offset=...
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repo.HistoryFilter{
		TaskName: q.Get("task_name"),
		ServerID: q.Get("server_id"),
		Limit:    defaultHistoryLimit,
	}

	if status := q.Get("status"); status != "" {
		st, err := domain.ParseHistoryStatus(status)
		if err != nil {
			BadRequest(w, "invalid status: expected completed or failed")
			return
		}
		filter.Status = st
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > maxHistoryLimit {
			BadRequest(w, "invalid limit: expected 1..1000")
			return
		}
		filter.Limit = limit
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			BadRequest(w, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	records, total, err := h.history.List(r.Context(), filter)
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	JSON(w, http.StatusOK, HistoryListResponse{
		Data: historyList(records),
		Pagination: Pagination{
			Total:   total,
			Limit:   filter.Limit,
			Offset:  filter.Offset,
			HasMore: filter.Offset+len(records) < total,
		},
	})
}

// GetStats возвращает статистику выполнений за окно.
// GET /api/v1/tasks/stats?window=24h
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	window := h.statsWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			BadRequest(w, "invalid window: expected a positive duration like 1h or 24h")
			return
		}
		window = d
	}

	counts, err := h.tasks.Counts(r.Context())
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	stats, err := h.history.Stats(r.Context(), h.now().Add(-window))
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}
	stats.Tasks = counts
	stats.Window = window

	Success(w, StatsFromDomain(stats))
}
