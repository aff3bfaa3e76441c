package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип события.
type MessageType string

// Типы событий.
const (
	MessageTypeTaskCompleted MessageType = "task.completed"
	MessageTypeTaskFailed    MessageType = "task.failed"
	MessageTypeTaskReclaimed MessageType = "task.reclaimed"
)

// Message — конверт события.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип события.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// TaskExecutedPayload — событие о завершённой попытке выполнения.
type TaskExecutedPayload struct {
	TaskID      int64     `json:"task_id"`
	TaskName    string    `json:"task_name"`
	ServerID    string    `json:"server_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Status      string    `json:"status"` // completed или failed
	Error       string    `json:"error,omitempty"`
}

// TaskReclaimedPayload — событие о принудительно освобождённой задаче.
type TaskReclaimedPayload struct {
	TaskID           int64     `json:"task_id"`
	TaskName         string    `json:"task_name"`
	PreviousServerID string    `json:"previous_server_id"`
	StuckSince       time.Time `json:"stuck_since"`
	ReclaimedBy      string    `json:"reclaimed_by"`
	NextRunAt        time.Time `json:"next_run_at"`
}

// publishFunc отправляет одно сообщение в брокер.
type publishFunc func(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error

// Publisher публикует события выполнения задач.
type Publisher struct {
	publish publishFunc
	logger  *slog.Logger
	now     func() time.Time
}

// NewPublisher создаёт Publisher поверх соединения.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return newPublisher(func(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
		return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
			return ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
		})
	}, logger)
}

func newPublisher(publish publishFunc, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		publish: publish,
		logger:  logger,
		now:     time.Now,
	}
}

// Publish отправляет сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.publish(ctx, string(exchange), string(routingKey), amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// PublishTaskExecuted публикует результат попытки выполнения.
// Routing key выбирается по статусу: completed или failed.
func (p *Publisher) PublishTaskExecuted(ctx context.Context, payload TaskExecutedPayload) error {
	msgType, key := MessageTypeTaskCompleted, RoutingKeyCompleted
	if payload.Status == "failed" {
		msgType, key = MessageTypeTaskFailed, RoutingKeyFailed
	}
	return p.Publish(ctx, ExchangeTasks, key, p.message(msgType, payload))
}

// PublishTaskReclaimed публикует событие о reclaim зависшей задачи.
func (p *Publisher) PublishTaskReclaimed(ctx context.Context, payload TaskReclaimedPayload) error {
	return p.Publish(ctx, ExchangeTasks, RoutingKeyReclaimed, p.message(MessageTypeTaskReclaimed, payload))
}

func (p *Publisher) message(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: p.now().UTC(),
	}
}
