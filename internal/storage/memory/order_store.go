package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderStoreInMemory выполняет workflow-транзакции над общим Store.
// Блокировка Store сериализует транзакции, поэтому check-and-act гонки
// на остатках невозможны; откат реализован снимком состояния.
type orderStoreInMemory struct {
	store *Store
}

// NewOrderStore возвращает in-memory реализацию OrderStore.
func NewOrderStore(store *Store) domain.OrderStore {
	return &orderStoreInMemory{store: store}
}

func (s *orderStoreInMemory) WithinTx(ctx context.Context, fn func(tx domain.OrderTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	snap := s.store.snapshotLocked()
	tx := &orderTxInMemory{store: s.store}
	if err := fn(tx); err != nil {
		s.store.restoreLocked(snap)
		return err
	}
	return nil
}

// orderTxInMemory выполняет операции под блокировкой, взятой в WithinTx.
type orderTxInMemory struct {
	store *Store
}

func (t *orderTxInMemory) CustomerExists(id string) (bool, error) {
	_, ok := t.store.customers[id]
	return ok, nil
}

func (t *orderTxInMemory) GetOrder(id string) (domain.Order, error) {
	order, ok := t.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (t *orderTxInMemory) InsertOrder(order domain.Order) error {
	if _, exists := t.store.orders[order.ID]; exists {
		return domain.ErrAlreadyExists
	}
	t.store.orders[order.ID] = cloneOrder(order)
	return nil
}

func (t *orderTxInMemory) ReplaceOrder(order domain.Order) error {
	if _, ok := t.store.orders[order.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	t.store.orders[order.ID] = cloneOrder(order)
	return nil
}

func (t *orderTxInMemory) DeleteOrder(id string) (bool, error) {
	if _, ok := t.store.orders[id]; !ok {
		return false, nil
	}
	delete(t.store.orders, id)
	return true, nil
}

// ReserveStock уменьшает остаток, если его хватает на запрошенное количество.
func (t *orderTxInMemory) ReserveStock(productID string, qty int32) error {
	product, ok := t.store.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.Stock < qty {
		return &domain.InsufficientStockError{ProductID: productID}
	}
	product.Stock -= qty
	product.UpdatedAt = time.Now().UTC()
	t.store.products[productID] = product
	return nil
}

// RestoreStock возвращает qty единиц на остаток товара.
func (t *orderTxInMemory) RestoreStock(productID string, qty int32) error {
	product, ok := t.store.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	product.Stock += qty
	product.UpdatedAt = time.Now().UTC()
	t.store.products[productID] = product
	return nil
}

func (t *orderTxInMemory) EnqueueOutbox(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.store.outbox[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    outboxStatusPending,
		createdAt: now,
		updatedAt: now,
	}
	return msg, nil
}

func (t *orderTxInMemory) AppendHistory(event domain.HistoryEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	t.store.history[event.OrderID] = append(t.store.history[event.OrderID], event)
	return nil
}

var (
	_ domain.OrderStore = (*orderStoreInMemory)(nil)
	_ domain.OrderTx    = (*orderTxInMemory)(nil)
)
