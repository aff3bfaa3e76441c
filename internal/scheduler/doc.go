// Package scheduler реализует процесс-планировщик задач.
//
// Каждый процесс периодически забирает одну due-задачу из общей таблицы
// tasks, выполняет её функцию, пишет историю и переносит next_run_at.
// Отдельный цикл освобождает задачи, зависшие дольше StuckThreshold
// (процесс упал, не освободив claim).
//
// Структура:
//   - scheduler.go — Scheduler, жизненный цикл (Start, Stop), цикл опроса, TryClaimOne
//   - executor.go  — Execute: вызов функции, история, освобождение
//   - reclaimer.go — Sweep: освобождение зависших задач
//   - clock.go     — Clock, Ticker, Identity
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Tasks:     taskRepo,
//	    History:   historyRepo,
//	    Registry:  registry,
//	    Publisher: publisher, // опционально
//	    Metrics:   metrics,   // опционально
//	    Logger:    logger,
//	})
//	if err != nil {
//	    return err
//	}
//
//	sched.Start(ctx)
//	defer sched.Stop(shutdownCtx)
//
// Координация:
//
// Процессы не знают друг о друге. Уникальность claim обеспечивает
// PostgreSQL (FOR UPDATE SKIP LOCKED в SERIALIZABLE транзакции).
// Процесс выполняет не больше одной задачи одновременно.
package scheduler
