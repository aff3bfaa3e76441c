package mq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// ExchangeTasks — обменник событий выполнения задач.
const ExchangeTasks Exchange = "cronfleet.tasks"

// QueueTaskEvents — очередь для внешних потребителей (аудит, алерты).
// Сам планировщик из неё не читает.
const QueueTaskEvents Queue = "tasks.events"

// Routing keys.
const (
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyFailed    RoutingKey = "failed"
	RoutingKeyReclaimed RoutingKey = "reclaimed"
)

// binding — привязка очереди к обменнику.
type binding struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// bindings — все привязки топологии.
var bindings = []binding{
	{QueueTaskEvents, RoutingKeyCompleted, ExchangeTasks},
	{QueueTaskEvents, RoutingKeyFailed, ExchangeTasks},
	{QueueTaskEvents, RoutingKeyReclaimed, ExchangeTasks},
}

// SetupTopology объявляет обменник, очередь и привязки.
// Операция идемпотентна, её повторяют после каждого переподключения.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeTasks), // name
			amqp.ExchangeDirect,   // type
			true,                  // durable
			false,                 // auto-deleted
			false,                 // internal
			false,                 // no-wait
			nil,                   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeTasks, err)
		}

		_, err = ch.QueueDeclare(
			string(QueueTaskEvents), // name
			true,                    // durable
			false,                   // delete when unused
			false,                   // exclusive
			false,                   // no-wait
			nil,                     // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueTaskEvents, err)
		}

		for _, b := range bindings {
			err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s/%s: %w", b.queue, b.exchange, b.routingKey, err)
			}
		}
		return nil
	})
}

// TopologyInfo возвращает однострочное описание привязок для логов.
func TopologyInfo() string {
	keys := make([]string, len(bindings))
	for i, b := range bindings {
		keys[i] = fmt.Sprintf("%s -> %s/%s", b.exchange, b.queue, b.routingKey)
	}
	return strings.Join(keys, ", ")
}
