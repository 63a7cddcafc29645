package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func seedProduct(t *testing.T, store *Store, id string, stock int32) {
	t.Helper()
	repo := NewProductRepository(store)
	if err := repo.Create(domain.Product{ID: id, Name: "product " + id, PriceMinor: 100, Stock: stock}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func TestOrderStore_CommitPersistsEverything(t *testing.T) {
	store := NewStore()
	seedProduct(t, store, "p1", 10)

	orderStore := NewOrderStore(store)
	now := time.Now().UTC()
	order := domain.Order{
		ID:         "order-1",
		CustomerID: "c1",
		OrderDate:  now,
		Lines: []domain.OrderLine{
			{ID: "l1", OrderID: "order-1", ProductID: "p1", Qty: 4, PriceMinor: 100, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := orderStore.WithinTx(context.Background(), func(tx domain.OrderTx) error {
		if err := tx.ReserveStock("p1", 4); err != nil {
			return err
		}
		if err := tx.InsertOrder(order); err != nil {
			return err
		}
		if _, err := tx.EnqueueOutbox(domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     "order.placed",
			Payload:       []byte(`{}`),
		}); err != nil {
			return err
		}
		return tx.AppendHistory(domain.HistoryEvent{OrderID: order.ID, Type: domain.HistoryEventOrderCreated})
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}

	product, err := NewProductRepository(store).Get("p1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 6 {
		t.Fatalf("expected stock 6, got %d", product.Stock)
	}

	if _, err := NewOrderRepository(store).Get("order-1"); err != nil {
		t.Fatalf("expected order to be persisted: %v", err)
	}

	pending, err := NewOutboxRepository(store).PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one outbox message, got %d", len(pending))
	}

	events, err := NewHistoryRepository(store).List("order-1")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.HistoryEventOrderCreated {
		t.Fatalf("unexpected history: %v", events)
	}
}

func TestOrderStore_RollbackRestoresState(t *testing.T) {
	store := NewStore()
	seedProduct(t, store, "p1", 10)
	seedProduct(t, store, "p2", 1)

	orderStore := NewOrderStore(store)
	err := orderStore.WithinTx(context.Background(), func(tx domain.OrderTx) error {
		// Первая позиция резервируется успешно, вторая валит транзакцию.
		if err := tx.ReserveStock("p1", 4); err != nil {
			return err
		}
		return tx.ReserveStock("p2", 5)
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	products := NewProductRepository(store)
	p1, _ := products.Get("p1")
	p2, _ := products.Get("p2")
	if p1.Stock != 10 || p2.Stock != 1 {
		t.Fatalf("rollback did not restore stock: p1=%d p2=%d", p1.Stock, p2.Stock)
	}

	pending, err := NewOutboxRepository(store).PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty outbox after rollback, got %d", len(pending))
	}
}

func TestOrderStore_ReserveStock(t *testing.T) {
	store := NewStore()
	seedProduct(t, store, "p1", 3)
	orderStore := NewOrderStore(store)

	err := orderStore.WithinTx(context.Background(), func(tx domain.OrderTx) error {
		return tx.ReserveStock("missing", 1)
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}

	err = orderStore.WithinTx(context.Background(), func(tx domain.OrderTx) error {
		return tx.ReserveStock("p1", 4)
	})
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.ProductID != "p1" {
		t.Fatalf("expected insufficient stock for p1, got %v", err)
	}
}

func TestOrderStore_ConcurrentReservations(t *testing.T) {
	const stock = 5

	store := NewStore()
	seedProduct(t, store, "p1", stock)
	orderStore := NewOrderStore(store)

	// Два конкурирующих запроса на весь остаток: выиграть должен ровно один.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- orderStore.WithinTx(context.Background(), func(tx domain.OrderTx) error {
				return tx.ReserveStock("p1", stock)
			})
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, insufficient int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("expected one winner and one loser, got ok=%d insufficient=%d", succeeded, insufficient)
	}

	product, _ := NewProductRepository(store).Get("p1")
	if product.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", product.Stock)
	}
}

func TestOrderStore_ContextCanceled(t *testing.T) {
	store := NewStore()
	orderStore := NewOrderStore(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := orderStore.WithinTx(ctx, func(tx domain.OrderTx) error {
		t.Fatal("fn must not run with canceled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
