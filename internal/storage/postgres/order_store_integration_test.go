package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func seedCustomerForIntegrationTest(t *testing.T, store *Store, id string) {
	t.Helper()

	now := time.Now().UTC()
	err := NewCustomerRepository(store).Create(domain.Customer{
		ID:        id,
		FirstName: "Анна",
		LastName:  "Петрова",
		Email:     id + "@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
}

func seedProductForIntegrationTest(t *testing.T, store *Store, id string, stock int32) {
	t.Helper()

	now := time.Now().UTC()
	err := NewProductRepository(store).Create(domain.Product{
		ID:         id,
		Name:       "Товар " + id,
		PriceMinor: 14990,
		Stock:      stock,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func TestOrderStore_PostgresCommitFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store)
	products := NewProductRepository(store)

	seedCustomerForIntegrationTest(t, store, "cust-commit")
	seedProductForIntegrationTest(t, store, "prod-commit", 10)

	now := time.Now().UTC()
	order := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: "cust-commit",
		OrderDate:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
		Lines: []domain.OrderLine{
			{ID: uuid.NewString(), ProductID: "prod-commit", Qty: 4, PriceMinor: 14990, CreatedAt: now},
		},
	}

	err := orders.WithinTx(context.Background(), func(tx domain.OrderTx) error {
		ok, err := tx.CustomerExists(order.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrCustomerNotFound
		}
		if err := tx.ReserveStock("prod-commit", 4); err != nil {
			return err
		}
		if err := tx.InsertOrder(order); err != nil {
			return err
		}
		if _, err := tx.EnqueueOutbox(domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     "OrderCreated",
			Payload:       []byte(`{}`),
		}); err != nil {
			return err
		}
		return tx.AppendHistory(domain.HistoryEvent{
			OrderID: order.ID,
			Type:    domain.HistoryEventOrderCreated,
		})
	})
	if err != nil {
		t.Fatalf("commit flow: %v", err)
	}

	product, err := products.Get("prod-commit")
	if err != nil {
		t.Fatalf("get product after commit: %v", err)
	}
	if product.Stock != 6 {
		t.Fatalf("expected stock 6 after reserving 4 of 10, got %d", product.Stock)
	}

	got, err := NewOrderRepository(store).Get(order.ID)
	if err != nil {
		t.Fatalf("get order after commit: %v", err)
	}
	if len(got.Lines) != 1 || got.Lines[0].Qty != 4 {
		t.Fatalf("unexpected order lines after commit: %+v", got.Lines)
	}

	events, err := NewHistoryRepository(store).List(order.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.HistoryEventOrderCreated {
		t.Fatalf("unexpected history events: %+v", events)
	}
}

func TestOrderStore_PostgresRollbackRestoresStock(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store)
	products := NewProductRepository(store)

	seedProductForIntegrationTest(t, store, "prod-rollback", 10)

	wantErr := errors.New("forced failure")
	err := orders.WithinTx(context.Background(), func(tx domain.OrderTx) error {
		if err := tx.ReserveStock("prod-rollback", 7); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected forced failure, got %v", err)
	}

	product, err := products.Get("prod-rollback")
	if err != nil {
		t.Fatalf("get product after rollback: %v", err)
	}
	if product.Stock != 10 {
		t.Fatalf("expected stock 10 after rollback, got %d", product.Stock)
	}
}

func TestOrderStore_PostgresInsufficientStock(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store)

	seedProductForIntegrationTest(t, store, "prod-low", 2)

	err := orders.WithinTx(context.Background(), func(tx domain.OrderTx) error {
		return tx.ReserveStock("prod-low", 3)
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.ProductID != "prod-low" {
		t.Fatalf("expected InsufficientStockError for prod-low, got %v", err)
	}

	err = orders.WithinTx(context.Background(), func(tx domain.OrderTx) error {
		return tx.ReserveStock("prod-missing", 1)
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestOrderStore_PostgresReplaceAndDelete(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store)

	seedCustomerForIntegrationTest(t, store, "cust-replace")
	seedProductForIntegrationTest(t, store, "prod-replace-a", 10)
	seedProductForIntegrationTest(t, store, "prod-replace-b", 10)

	now := time.Now().UTC()
	order := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: "cust-replace",
		OrderDate:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
		Lines: []domain.OrderLine{
			{ID: uuid.NewString(), ProductID: "prod-replace-a", Qty: 2, PriceMinor: 14990, CreatedAt: now},
		},
	}

	err := orders.WithinTx(context.Background(), func(tx domain.OrderTx) error {
		return tx.InsertOrder(order)
	})
	if err != nil {
		t.Fatalf("insert order: %v", err)
	}

	order.Lines = []domain.OrderLine{
		{ID: uuid.NewString(), ProductID: "prod-replace-b", Qty: 5, PriceMinor: 9990, CreatedAt: now},
	}
	order.UpdatedAt = time.Now().UTC()
	err = orders.WithinTx(context.Background(), func(tx domain.OrderTx) error {
		return tx.ReplaceOrder(order)
	})
	if err != nil {
		t.Fatalf("replace order: %v", err)
	}

	got, err := NewOrderRepository(store).Get(order.ID)
	if err != nil {
		t.Fatalf("get order after replace: %v", err)
	}
	if len(got.Lines) != 1 || got.Lines[0].ProductID != "prod-replace-b" || got.Lines[0].Qty != 5 {
		t.Fatalf("unexpected lines after replace: %+v", got.Lines)
	}

	err = orders.WithinTx(context.Background(), func(tx domain.OrderTx) error {
		deleted, err := tx.DeleteOrder(order.ID)
		if err != nil {
			return err
		}
		if !deleted {
			t.Fatal("expected order to be deleted")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("delete order: %v", err)
	}

	if _, err := NewOrderRepository(store).Get(order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound after delete, got %v", err)
	}
}

func TestOrderStore_PostgresConcurrentReservations(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store)
	products := NewProductRepository(store)

	seedProductForIntegrationTest(t, store, "prod-race", 5)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- orders.WithinTx(context.Background(), func(tx domain.OrderTx) error {
				return tx.ReserveStock("prod-race", 5)
			})
		}()
	}

	var wins, losses int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrInsufficientStock):
			losses++
		default:
			t.Fatalf("unexpected reservation error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected exactly one winner, got wins=%d losses=%d", wins, losses)
	}

	product, err := products.Get("prod-race")
	if err != nil {
		t.Fatalf("get product after race: %v", err)
	}
	if product.Stock != 0 {
		t.Fatalf("expected stock 0 after race, got %d", product.Stock)
	}
}
