package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type sent struct {
	exchange   string
	routingKey string
	msg        amqp.Publishing
}

func recordingPublisher(t *testing.T, out *[]sent, err error) *Publisher {
	t.Helper()
	p := newPublisher(func(_ context.Context, exchange, routingKey string, msg amqp.Publishing) error {
		if err != nil {
			return err
		}
		*out = append(*out, sent{exchange: exchange, routingKey: routingKey, msg: msg})
		return nil
	}, nil)
	p.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestPublishTaskExecuted_RoutingByStatus(t *testing.T) {
	tests := []struct {
		status  string
		wantKey RoutingKey
		wantTyp MessageType
	}{
		{"completed", RoutingKeyCompleted, MessageTypeTaskCompleted},
		{"failed", RoutingKeyFailed, MessageTypeTaskFailed},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			var out []sent
			p := recordingPublisher(t, &out, nil)

			err := p.PublishTaskExecuted(context.Background(), TaskExecutedPayload{
				TaskID:   7,
				TaskName: "cleanup",
				ServerID: "srv-1",
				Status:   tt.status,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(out) != 1 {
				t.Fatalf("expected 1 message, got %d", len(out))
			}

			got := out[0]
			if got.exchange != string(ExchangeTasks) {
				t.Errorf("exchange = %q, want %q", got.exchange, ExchangeTasks)
			}
			if got.routingKey != string(tt.wantKey) {
				t.Errorf("routing key = %q, want %q", got.routingKey, tt.wantKey)
			}
			if got.msg.DeliveryMode != amqp.Persistent {
				t.Errorf("expected persistent delivery")
			}
			if got.msg.Type != string(tt.wantTyp) {
				t.Errorf("type = %q, want %q", got.msg.Type, tt.wantTyp)
			}

			var envelope struct {
				ID      string              `json:"id"`
				Type    MessageType         `json:"type"`
				Payload TaskExecutedPayload `json:"payload"`
			}
			if err := json.Unmarshal(got.msg.Body, &envelope); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if envelope.ID == "" || envelope.ID != got.msg.MessageId {
				t.Errorf("message id mismatch: body %q, header %q", envelope.ID, got.msg.MessageId)
			}
			if envelope.Payload.TaskID != 7 || envelope.Payload.TaskName != "cleanup" {
				t.Errorf("unexpected payload: %+v", envelope.Payload)
			}
		})
	}
}

func TestPublishTaskReclaimed(t *testing.T) {
	var out []sent
	p := recordingPublisher(t, &out, nil)

	err := p.PublishTaskReclaimed(context.Background(), TaskReclaimedPayload{
		TaskID:           3,
		TaskName:         "reports",
		PreviousServerID: "dead",
		ReclaimedBy:      "alive",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].routingKey != string(RoutingKeyReclaimed) {
		t.Fatalf("expected one reclaimed message, got %+v", out)
	}
	if !out[0].msg.Timestamp.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %v", out[0].msg.Timestamp)
	}
}

func TestPublish_WrapsError(t *testing.T) {
	var out []sent
	p := recordingPublisher(t, &out, ErrNoChannel)

	err := p.PublishTaskExecuted(context.Background(), TaskExecutedPayload{Status: "completed"})
	if !errors.Is(err, ErrNoChannel) {
		t.Fatalf("expected ErrNoChannel, got %v", err)
	}
}

func TestTopologyInfo(t *testing.T) {
	want := "cronfleet.tasks -> tasks.events/completed, " +
		"cronfleet.tasks -> tasks.events/failed, " +
		"cronfleet.tasks -> tasks.events/reclaimed"
	if got := TopologyInfo(); got != want {
		t.Errorf("TopologyInfo() = %q, want %q", got, want)
	}
}
