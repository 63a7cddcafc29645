package order

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// LineInput — позиция заказа в команде создания или обновления.
// PriceMinor фиксируется в заказе как снимок цены на момент оформления.
type LineInput struct {
	ProductID  string
	Qty        int32
	PriceMinor int64
}

// CreateInput — команда создания заказа.
type CreateInput struct {
	CustomerID string
	OrderDate  time.Time
	Lines      []LineInput
}

// UpdateInput — команда полной замены заказа: набор позиций перезаписывается
// целиком, складские остатки корректируются на дельту.
type UpdateInput struct {
	OrderID    string
	CustomerID string
	OrderDate  time.Time
	Lines      []LineInput
}

const defaultListLimit = 100

// Service реализует order workflow: создание, обновление и удаление заказа
// вместе с согласованной корректировкой остатков. Каждая операция выполняется
// в одной транзакции хранилища: событие outbox, запись истории и все
// изменения остатков коммитятся
// вместе с заказом либо откатываются вместе с ним.
type Service struct {
	store   domain.OrderStore
	reader  domain.OrderRepository
	history domain.HistoryRepository
	metrics *metrics.OrderMetrics
	logger  *log.Entry
}

// NewService конструирует сервис с зависимостями.
func NewService(store domain.OrderStore, reader domain.OrderRepository, history domain.HistoryRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		store:   store,
		reader:  reader,
		history: history,
		metrics: metrics.NewOrderMetrics(),
		logger:  logger,
	}
}

// NewServiceWithoutMetrics конструирует сервис без метрик (для тестов).
func NewServiceWithoutMetrics(store domain.OrderStore, reader domain.OrderRepository, history domain.HistoryRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		store:   store,
		reader:  reader,
		history: history,
		logger:  logger,
	}
}

// Create оформляет заказ: резервирует остатки по каждой позиции и сохраняет
// заказ с копией цен. Недостаток остатка по любой позиции откатывает всё.
func (s *Service) Create(ctx context.Context, input CreateInput) (domain.Order, error) {
	now := time.Now().UTC()
	order := buildOrder(uuid.NewString(), input.CustomerID, input.OrderDate, input.Lines, now)
	order.CreatedAt = now

	if err := domain.NewValidationError(order.ValidateInvariants()); err != nil {
		return domain.Order{}, err
	}

	err := s.store.WithinTx(ctx, func(tx domain.OrderTx) error {
		ok, err := tx.CustomerExists(order.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrCustomerNotFound
		}

		quantities := order.QtyByProduct()
		for _, productID := range sortedProductIDs(quantities) {
			if err := tx.ReserveStock(productID, quantities[productID]); err != nil {
				return err
			}
		}

		if err := tx.InsertOrder(order); err != nil {
			return err
		}
		if err := s.enqueueOrderEvent(tx, order, eventOrderCreated); err != nil {
			return err
		}
		return tx.AppendHistory(domain.HistoryEvent{
			OrderID:  order.ID,
			Type:     domain.HistoryEventOrderCreated,
			Occurred: now,
		})
	})
	if err != nil {
		s.logOrderFailure("Create", order.ID, err)
		s.recordOperation("create", err)
		return domain.Order{}, err
	}

	s.recordOperation("create", nil)
	s.recordHistoryEvent()
	return order, nil
}

// Update заменяет заказ новым набором позиций. Для каждого товара считается
// дельта между новым и прежним количеством: положительная дельта резервирует
// остаток (и падает с InsufficientStock, если текущего остатка меньше дельты),
// отрицательная — возвращает разницу, товар, исчезнувший из заказа,
// получает обратно весь прежний резерв.
func (s *Service) Update(ctx context.Context, input UpdateInput) (domain.Order, error) {
	if input.OrderID == "" {
		return domain.Order{}, domain.NewValidationError([]error{domain.ErrOrderIDRequired})
	}

	now := time.Now().UTC()
	order := buildOrder(input.OrderID, input.CustomerID, input.OrderDate, input.Lines, now)

	if err := domain.NewValidationError(order.ValidateInvariants()); err != nil {
		return domain.Order{}, err
	}

	err := s.store.WithinTx(ctx, func(tx domain.OrderTx) error {
		previous, err := tx.GetOrder(order.ID)
		if err != nil {
			return err
		}
		order.CreatedAt = previous.CreatedAt

		ok, err := tx.CustomerExists(order.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrCustomerNotFound
		}

		if err := applyStockDeltas(tx, previous.QtyByProduct(), order.QtyByProduct()); err != nil {
			return err
		}

		if err := tx.ReplaceOrder(order); err != nil {
			return err
		}
		if err := s.enqueueOrderEvent(tx, order, eventOrderUpdated); err != nil {
			return err
		}
		return tx.AppendHistory(domain.HistoryEvent{
			OrderID:  order.ID,
			Type:     domain.HistoryEventOrderUpdated,
			Occurred: now,
		})
	})
	if err != nil {
		s.logOrderFailure("Update", order.ID, err)
		s.recordOperation("update", err)
		return domain.Order{}, err
	}

	s.recordOperation("update", nil)
	s.recordHistoryEvent()
	return order, nil
}

// Delete удаляет заказ. Остатки товаров не восстанавливаются: резерв
// считается потреблённым. Возвращает false, если заказа не было.
func (s *Service) Delete(ctx context.Context, orderID string) (bool, error) {
	if orderID == "" {
		return false, domain.NewValidationError([]error{domain.ErrOrderIDRequired})
	}

	var deleted bool
	err := s.store.WithinTx(ctx, func(tx domain.OrderTx) error {
		var err error
		deleted, err = tx.DeleteOrder(orderID)
		if err != nil {
			return err
		}
		if !deleted {
			return nil
		}
		if _, err := tx.EnqueueOutbox(domain.OutboxMessage{
			AggregateType: aggregateOrder,
			AggregateID:   orderID,
			EventType:     eventOrderDeleted,
			Payload:       encodeOrderDeletedEvent(orderID),
		}); err != nil {
			return err
		}
		return tx.AppendHistory(domain.HistoryEvent{
			OrderID:  orderID,
			Type:     domain.HistoryEventOrderDeleted,
			Occurred: time.Now().UTC(),
		})
	})
	if err != nil {
		s.logOrderFailure("Delete", orderID, err)
		s.recordOperation("delete", err)
		return false, err
	}

	s.recordOperation("delete", nil)
	if deleted {
		s.recordHistoryEvent()
	}
	return deleted, nil
}

// Get возвращает заказ с позициями и событиями истории от старых к новым.
func (s *Service) Get(ctx context.Context, orderID string) (domain.Order, []domain.HistoryEvent, error) {
	if orderID == "" {
		return domain.Order{}, nil, domain.NewValidationError([]error{domain.ErrOrderIDRequired})
	}

	order, err := s.reader.Get(orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	if s.history == nil {
		return order, nil, nil
	}

	events, err := s.history.List(orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	return order, events, nil
}

// List возвращает последние заказы.
func (s *Service) List(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.reader.List(limit)
}

// ListByCustomer возвращает заказы клиента от новых к старым.
func (s *Service) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if customerID == "" {
		return nil, domain.NewValidationError([]error{domain.ErrCustomerRequired})
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.reader.ListByCustomer(customerID, limit)
}

func buildOrder(id, customerID string, orderDate time.Time, lines []LineInput, now time.Time) domain.Order {
	if orderDate.IsZero() {
		orderDate = now
	}

	orderLines := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		orderLines = append(orderLines, domain.OrderLine{
			ID:         uuid.NewString(),
			OrderID:    id,
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
			CreatedAt:  now,
		})
	}

	return domain.Order{
		ID:         id,
		CustomerID: customerID,
		OrderDate:  orderDate,
		Lines:      orderLines,
		UpdatedAt:  now,
	}
}

// applyStockDeltas сводит прежние и новые количества к одной дельте на товар.
// Резервы применяются раньше возвратов: проверка достаточности растущей
// позиции идёт по текущему остатку, без учёта ещё не возвращённого резерва
// других позиций. Проверка консервативна и может отклонить обновление,
// которое прошло бы после возвратов.
func applyStockDeltas(tx domain.OrderTx, before, after map[string]int32) error {
	ids := make([]string, 0, len(before)+len(after))
	seen := make(map[string]struct{}, len(before)+len(after))
	for id := range before {
		ids = append(ids, id)
		seen[id] = struct{}{}
	}
	for id := range after {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if delta := after[id] - before[id]; delta > 0 {
			if err := tx.ReserveStock(id, delta); err != nil {
				return err
			}
		}
	}
	for _, id := range ids {
		if delta := after[id] - before[id]; delta < 0 {
			if err := tx.RestoreStock(id, -delta); err != nil {
				return err
			}
		}
	}

	return nil
}

func sortedProductIDs(quantities map[string]int32) []string {
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Service) recordOperation(operation string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.RecordOperation(operation, result)
}

func (s *Service) recordHistoryEvent() {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordHistoryEvent()
}

func (s *Service) logOrderFailure(operation, orderID string, err error) {
	entry := s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"order_id":  orderID,
	})

	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInsufficientStock),
		domain.IsNotFound(err):
		entry.Warn("order operation rejected")
	default:
		entry.Error("order operation failed")
	}
}
