package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Logging снаружи: Recovery пишет панику логгером запроса,
	// а итоговая запись видит статус 500.
	chain := Chain(
		Logging(h.logger),
		Recovery(h.logger),
	)

	// Tasks
	mux.Handle("GET /api/v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTask)))

	// History and stats
	mux.Handle("GET /api/v1/tasks/history", chain(http.HandlerFunc(h.ListHistory)))
	mux.Handle("GET /api/v1/tasks/stats", chain(http.HandlerFunc(h.GetStats)))

	// Local scheduler
	mux.Handle("GET /api/v1/scheduler", chain(http.HandlerFunc(h.GetScheduler)))
}
