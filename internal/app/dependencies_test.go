package app

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/customer"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

func newMemoryRuntime(t *testing.T) *runtimeDependencies {
	t.Helper()

	runtime, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
	}, log.WithField("test", "dependencies"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies failed: %v", err)
	}
	return runtime
}

func TestNewDependencies(t *testing.T) {
	logger := log.WithField("test", "dependencies")
	deps := NewDependencies(newMemoryRuntime(t), logger)

	if deps == nil {
		t.Fatal("NewDependencies should not return nil")
	}

	if deps.Orders == nil {
		t.Error("Orders service should not be nil")
	}

	if deps.Catalog == nil {
		t.Error("Catalog service should not be nil")
	}

	if deps.Customers == nil {
		t.Error("Customers service should not be nil")
	}

	if deps.Metrics == nil {
		t.Error("Metrics should not be nil")
	}

	if deps.Logger == nil {
		t.Error("Logger should not be nil")
	}
}

func TestNewDependencies_WithNilLogger(t *testing.T) {
	deps := NewDependencies(newMemoryRuntime(t), nil)

	if deps == nil {
		t.Fatal("NewDependencies should not return nil")
	}

	if deps.Logger == nil {
		t.Error("Logger should be initialized even when nil is passed")
	}
}

func TestNewDependencies_ServicesShareStorage(t *testing.T) {
	ctx := context.Background()
	deps := NewDependencies(newMemoryRuntime(t), log.WithField("test", "wiring"))

	created, err := deps.Customers.Create(customer.Input{
		FirstName: "Мария",
		LastName:  "Орлова",
		Email:     "maria@example.com",
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	product, err := deps.Catalog.CreateProduct(catalog.ProductInput{
		Name:       "Чайник",
		PriceMinor: 159900,
		Stock:      3,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	// Заказ через order-сервис видит клиента и товар, созданные соседними
	// сервисами: все сервисы работают поверх одного хранилища.
	placed, err := deps.Orders.Create(ctx, order.CreateInput{
		CustomerID: created.ID,
		OrderDate:  time.Now().UTC(),
		Lines:      []order.LineInput{{ProductID: product.ID, Qty: 2, PriceMinor: product.PriceMinor}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	stored, err := deps.Catalog.GetProduct(product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if stored.Stock != 1 {
		t.Fatalf("expected stock 1 after reserving 2 of 3, got %d", stored.Stock)
	}

	fetched, trail, err := deps.Orders.Get(ctx, placed.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if fetched.CustomerID != created.ID {
		t.Fatalf("expected customer %s, got %s", created.ID, fetched.CustomerID)
	}
	if len(trail) != 1 || trail[0].Type != domain.HistoryEventOrderCreated {
		t.Fatalf("expected order history trail with creation event, got %+v", trail)
	}
}

func TestNewDependencies_IndependentInstances(t *testing.T) {
	deps1 := NewDependencies(newMemoryRuntime(t), nil)
	deps2 := NewDependencies(newMemoryRuntime(t), nil)

	// Каждый вызов должен создавать новые экземпляры
	if deps1 == deps2 {
		t.Error("NewDependencies should create independent instances")
	}

	if deps1.Orders == deps2.Orders {
		t.Error("order service instances should be independent")
	}
}
