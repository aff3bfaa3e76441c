// Package mq публикует события выполнения задач в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchange, queue, bindings
//   - publisher.go  — публикация событий
//
// Типы сообщений:
//   - task.completed — попытка завершилась успешно
//   - task.failed    — функция вернула ошибку или не найдена
//   - task.reclaimed — sweep освободил зависшую задачу
//
// Exchanges:
//   - cronfleet.tasks — события задач (direct)
//
// События носят информационный характер: источник истины — таблицы
// tasks и task_history. Ошибка публикации только логируется.
package mq
