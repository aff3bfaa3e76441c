// Package cli реализует инструмент командной строки cronfleet.
//
// # Обзор
//
// CLI — клиентская утилита для просмотра состояния планировщика через
// HTTP API. Работает только на чтение и не импортирует внутренние пакеты.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для cronfleet API. Инкапсулирует HTTP-запросы,
// парсинг ответов (data, list, error envelope) и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	tasks, err := client.ListTasks()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, служебные сообщения — в stderr.
// Это позволяет использовать pipe: cronfleet task list --json | jq .
//
// ## Commands
//
//   - task: list, show ID
//   - history [--task --server --status --limit --offset]
//   - stats [--window]
//   - scheduler
//
// Каждая команда создаётся фабричной функцией (NewTaskCmd и т.д.),
// принимающей clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
