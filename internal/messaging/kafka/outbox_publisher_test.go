package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var fixedTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func outboxMessage(id, aggregateID, payload string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: domain.AggregateOrder,
		AggregateID:   aggregateID,
		EventType:     domain.EventNotifyOrderCreated,
		Payload:       []byte(payload),
		CreatedAt:     fixedTime,
	}
}

func TestOutboxPublisher_Publish(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != "order:42" {
			t.Errorf("expected key order:42, got %s", key)
		}
		value, _ := msg.Value.Encode()
		var envelope Envelope
		if err := json.Unmarshal(value, &envelope); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		if envelope.EventType != domain.EventNotifyOrderCreated || envelope.ID != "outbox-1" {
			t.Errorf("unexpected envelope: %+v", envelope)
		}
		return nil
	})

	publisher := NewOutboxPublisher(newProducer(mockProducer, log.WithField("component", "kafka-outbox-publisher-test")), "")
	if publisher.Topic() != TopicNotifications {
		t.Fatalf("expected default topic %s, got %s", TopicNotifications, publisher.Topic())
	}

	if err := publisher.Publish(context.Background(), outboxMessage("outbox-1", "42", `{"order_id":42}`)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewOutboxPublisher(newProducer(mockProducer, nil), TopicNotifications)
	if err := publisher.Publish(context.Background(), outboxMessage("outbox-2", "7", `{}`)); err == nil {
		t.Fatal("expected publish error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishNilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, TopicNotifications)
	if err := publisher.Publish(context.Background(), domain.OutboxMessage{ID: "outbox-3"}); err == nil {
		t.Fatal("expected error for nil producer")
	}
}

func TestOutboxPublisher_PublishCancelledContext(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	publisher := NewOutboxPublisher(newProducer(mockProducer, nil), TopicNotifications)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := publisher.Publish(ctx, outboxMessage("outbox-4", "1", `{}`)); err == nil {
		t.Fatal("expected context error")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}
