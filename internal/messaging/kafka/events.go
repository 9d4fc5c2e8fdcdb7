package kafka

import (
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Topics для Kafka
const (
	TopicNotifications   = "storefront.notifications"
	TopicDeadLetterQueue = "storefront.dlq" // сообщения outbox, исчерпавшие retry
)

// Kafka headers
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
)

// Envelope - формат сообщения outbox в Kafka.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope оборачивает сообщение outbox. Пустой payload превращается в null,
// иначе json.RawMessage не сериализуется.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		CreatedAt:     msg.CreatedAt,
		PublishedAt:   publishedAt,
	}
}

// PartitionKey - ключ партиционирования: события одного агрегата идут в одну партицию.
func (e Envelope) PartitionKey() string {
	if e.AggregateID != "" {
		return e.AggregateType + ":" + e.AggregateID
	}
	return e.ID
}
