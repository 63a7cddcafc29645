package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderPlaced  EventType = "order.placed"
	EventTypeOrderUpdated EventType = "order.updated"
	EventTypeOrderDeleted EventType = "order.deleted"
)

// CommandType определяет тип входящей команды
type CommandType string

const (
	CommandTypeOrderPlace  CommandType = "order.place"
	CommandTypeOrderUpdate CommandType = "order.update"
	CommandTypeOrderCancel CommandType = "order.cancel"
)

// Topics для Kafka
const (
	TopicOrderCommands   = "storefront.order.commands"
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики и идемпотентности
const (
	HeaderRetryCount     = "x-retry-count"
	HeaderOriginalTopic  = "x-original-topic"
	HeaderErrorMessage   = "x-error-message"
	HeaderFailedAt       = "x-failed-at"
	HeaderIdempotencyKey = "x-idempotency-key"
)

// CommandLine — позиция заказа во входящей команде.
type CommandLine struct {
	ProductID  string `json:"product_id"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

// OrderCommand представляет входящую команду над заказом. Для order.place
// заполняются customer_id, order_date и lines; для order.update дополнительно
// order_id; для order.cancel достаточно order_id.
type OrderCommand struct {
	CommandType    CommandType   `json:"command_type"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	OrderID        string        `json:"order_id,omitempty"`
	CustomerID     string        `json:"customer_id,omitempty"`
	OrderDate      time.Time     `json:"order_date,omitempty"`
	Lines          []CommandLine `json:"lines,omitempty"`
}

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	CustomerID string                 `json:"customer_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, customerID string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}
