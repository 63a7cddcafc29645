package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// txTimeout ограничивает длительность одной workflow-транзакции целиком.
const txTimeout = 10 * time.Second

type orderStore struct {
	db *sql.DB
}

// NewOrderStore создаёт PostgreSQL-реализацию OrderStore.
// Вся мутация заказа (проверки, резервирование остатков, outbox, история)
// выполняется в одной SQL-транзакции и либо коммитится целиком, либо
// откатывается целиком.
func NewOrderStore(store *Store) domain.OrderStore {
	return &orderStore{db: store.DB()}
}

func (s *orderStore) WithinTx(ctx context.Context, fn func(tx domain.OrderTx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(txCtx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}

	if err := fn(&orderTx{ctx: txCtx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order tx: %w", err)
	}

	return nil
}

type orderTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *orderTx) CustomerExists(id string) (bool, error) {
	var found string
	err := t.tx.QueryRowContext(t.ctx, `SELECT id FROM customers WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check customer exists: %w", err)
}

func (t *orderTx) GetOrder(id string) (domain.Order, error) {
	order, err := scanOrderRow(t.tx.QueryRowContext(t.ctx, `
		SELECT id, customer_id, order_date, created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return domain.Order{}, err
	}

	lines, err := loadOrderLines(t.ctx, t.tx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (t *orderTx) InsertOrder(order domain.Order) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO orders (id, customer_id, order_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
	`,
		order.ID, order.CustomerID, order.OrderDate, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return t.insertLines(order)
}

func (t *orderTx) ReplaceOrder(order domain.Order) error {
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE orders
		SET customer_id = $2,
		    order_date = $3,
		    updated_at = $4
		WHERE id = $1
	`,
		order.ID, order.CustomerID, order.OrderDate, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}

	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM order_lines WHERE order_id = $1`, order.ID); err != nil {
		return fmt.Errorf("delete order lines: %w", err)
	}

	return t.insertLines(order)
}

func (t *orderTx) DeleteOrder(id string) (bool, error) {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReserveStock опирается на условный UPDATE: строка меняется только если
// остатка хватает, иначе RowsAffected == 0 и запрос проигрывает гонку честно,
// без отдельного SELECT между проверкой и списанием.
func (t *orderTx) ReserveStock(productID string, qty int32) error {
	if qty <= 0 {
		return fmt.Errorf("reserve stock: qty must be positive, got %d", qty)
	}

	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE products
		SET stock = stock - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND stock >= $2
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	exists, err := t.productExists(productID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrProductNotFound
	}
	return &domain.InsufficientStockError{ProductID: productID}
}

func (t *orderTx) RestoreStock(productID string, qty int32) error {
	if qty <= 0 {
		return fmt.Errorf("restore stock: qty must be positive, got %d", qty)
	}

	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE products
		SET stock = stock + $2,
		    updated_at = NOW()
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

func (t *orderTx) EnqueueOutbox(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$7)
	`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, now, now,
	)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}

	return msg, nil
}

func (t *orderTx) AppendHistory(event domain.HistoryEvent) error {
	occurred := event.Occurred
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO order_history (order_id, type, reason, occurred)
		VALUES ($1,$2,$3,$4)
	`, event.OrderID, event.Type, event.Reason, occurred)
	if err != nil {
		return fmt.Errorf("append order history: %w", err)
	}

	return nil
}

func (t *orderTx) insertLines(order domain.Order) error {
	for _, line := range order.Lines {
		lineID := line.ID
		if lineID == "" {
			lineID = uuid.NewString()
		}
		createdAt := line.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO order_lines (id, order_id, product_id, qty, price_minor, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`,
			lineID, order.ID, line.ProductID, line.Qty, line.PriceMinor, createdAt,
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	return nil
}

func (t *orderTx) productExists(id string) (bool, error) {
	var found string
	err := t.tx.QueryRowContext(t.ctx, `SELECT id FROM products WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check product exists: %w", err)
}

var (
	_ domain.OrderStore = (*orderStore)(nil)
	_ domain.OrderTx    = (*orderTx)(nil)
)
