// Package app собирает процессы cronfleet из пакетов internal.
//
// Используется cmd/cronfleet-api и cmd/cronfleet-worker: оба процесса
// запускают одинаковый планировщик, api дополнительно обслуживает HTTP API.
//
// # Запуск
//
//	events := app.ConnectEvents(ctx, cfg, logger)
//	defer events.Close()
//
//	sched, err := app.NewScheduler(cfg, pool, events, prometheus.DefaultRegisterer, logger)
//	mux := app.HealthMux(time.Now(), prometheus.DefaultGatherer)
//	err = app.Run(ctx, logger, &http.Server{Addr: ":8082", Handler: mux}, sched, cfg.ShutdownTimeout)
//
// Run блокируется до отмены ctx, затем останавливает HTTP-сервер и
// планировщик в пределах SHUTDOWN_TIMEOUT (по умолчанию STUCK_THRESHOLD).
package app
