package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

// Publish переводит outbox-сообщение в типизированное OrderEvent и
// отправляет его в topic событий.
func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	var payload struct {
		CustomerID string `json:"customer_id"`
		TotalMinor int64  `json:"total_minor"`
	}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("decode outbox payload: %w", err)
		}
	}

	metadata := map[string]interface{}{
		"outbox_id":      event.ID,
		"aggregate_type": event.AggregateType,
	}
	if payload.TotalMinor > 0 {
		metadata["total_minor"] = payload.TotalMinor
	}

	orderEvent := NewOrderEvent(outboxEventType(event.EventType), event.AggregateID, payload.CustomerID, metadata)
	return p.producer.PublishEvent(p.topic, key, orderEvent)
}

// DLQTopicPublisher отправляет непубликуемые outbox-сообщения в DLQ как есть,
// в диагностическом конверте: cmd/dlq-reprocess восстанавливает из него
// исходное событие при повторной отправке.
type DLQTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewDLQPublisher создаёт Kafka-паблишер для Dead Letter Queue outbox worker'а.
func NewDLQPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	return &DLQTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *DLQTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishedAt   time.Time       `json:"published_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(p.topic, key, envelope)
}

// outboxEventType переводит словарь outbox в wire-словарь топика событий.
func outboxEventType(eventType string) EventType {
	switch eventType {
	case domain.HistoryEventOrderCreated:
		return EventTypeOrderPlaced
	case domain.HistoryEventOrderUpdated:
		return EventTypeOrderUpdated
	case domain.HistoryEventOrderDeleted:
		return EventTypeOrderDeleted
	default:
		return EventType(eventType)
	}
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
var _ domain.OutboxPublisher = (*DLQTopicPublisher)(nil)
