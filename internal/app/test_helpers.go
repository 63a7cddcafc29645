package app

import (
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// newTestOutboxMessage создаёт тестовое outbox-сообщение.
func newTestOutboxMessage(id string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: "order",
		AggregateID:   "order-" + id,
		EventType:     "OrderCreated",
		Payload:       []byte(`{"order_id":"order-` + id + `"}`),
	}
}
