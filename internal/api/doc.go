// Package api содержит HTTP API только для чтения.
//
// Структура:
//   - handler.go         — Handler с DI (репозитории, планировщик, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects
//   - task_handler.go    — /tasks, /tasks/{id}, /scheduler
//   - history_handler.go — /tasks/history, /tasks/stats
//
// API ничего не меняет в таблицах: состояние задач меняет только планировщик.
package api
