package order

import (
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	aggregateOrder = "order"

	eventOrderCreated = "OrderCreated"
	eventOrderUpdated = "OrderUpdated"
	eventOrderDeleted = "OrderDeleted"
)

// orderEventPayload — тело события заказа в outbox.
type orderEventPayload struct {
	OrderID    string           `json:"order_id"`
	CustomerID string           `json:"customer_id,omitempty"`
	OrderDate  time.Time        `json:"order_date,omitempty"`
	TotalMinor int64            `json:"total_minor,omitempty"`
	Lines      []orderEventLine `json:"lines,omitempty"`
}

type orderEventLine struct {
	ProductID  string `json:"product_id"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

func (s *Service) enqueueOrderEvent(tx domain.OrderTx, order domain.Order, eventType string) error {
	payload := orderEventPayload{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		OrderDate:  order.OrderDate,
		TotalMinor: order.TotalMinor(),
		Lines:      make([]orderEventLine, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		payload.Lines = append(payload.Lines, orderEventLine{
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to encode order event payload")
		body = nil
	}

	_, err = tx.EnqueueOutbox(domain.OutboxMessage{
		AggregateType: aggregateOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       body,
	})
	return err
}

func encodeOrderDeletedEvent(orderID string) []byte {
	body, err := json.Marshal(orderEventPayload{OrderID: orderID})
	if err != nil {
		return nil
	}
	return body
}
